package migrate

import (
	"context"
	"fanshare/database"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// SchemaInspector answers the existence questions migration units ask before mutating.
// Implementations must read through the transaction they were created for.
type SchemaInspector interface {
	TableNames(ctx context.Context) (database.NameSet, error)
	HasTable(ctx context.Context, name string) (bool, error)
	ColumnNames(ctx context.Context, table string) (database.NameSet, error)
}

// NewSQLiteInspector is the default inspector factory.
func NewSQLiteInspector(db *gorm.DB) SchemaInspector {
	return database.NewSQLiteInspector(db)
}

// Unit is one versioned schema change. Apply must be idempotent: it checks the live
// schema first and does nothing when the change is already in place.
type Unit struct {
	Version     string
	Description string
	Apply       func(ctx context.Context, tx *Tx) error
}

// Catalog is the append-only list of units a build knows about. Once a unit has shipped
// its version and behavior must not change.
type Catalog []Unit

// Validate checks that every unit has a well-formed, unique version, a description and
// an Apply function. Declaration order is not checked; the runner sorts.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: no units", ErrInvalidCatalog)
	}
	for i, u := range c {
		if _, err := ParseVersion(u.Version); err != nil {
			return fmt.Errorf("%w: unit %d: %w", ErrInvalidCatalog, i, err)
		}
		if strings.TrimSpace(u.Description) == "" {
			return fmt.Errorf("%w: unit %s has no description", ErrInvalidCatalog, u.Version)
		}
		if u.Apply == nil {
			return fmt.Errorf("%w: unit %s has no apply function", ErrInvalidCatalog, u.Version)
		}
		for _, prev := range c[:i] {
			if MustCompare(prev.Version, u.Version) == 0 {
				return fmt.Errorf("%w: duplicate version %s (also declared as %s)", ErrInvalidCatalog, u.Version, prev.Version)
			}
		}
	}
	return nil
}

// Ascending reports whether units are declared in strictly increasing version order.
// The catalog must already be valid.
func (c Catalog) Ascending() bool {
	for i := 1; i < len(c); i++ {
		if MustCompare(c[i-1].Version, c[i].Version) >= 0 {
			return false
		}
	}
	return true
}

// Sorted returns a copy of the catalog ordered by version.
func (c Catalog) Sorted() Catalog {
	out := make(Catalog, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool {
		return MustCompare(out[i].Version, out[j].Version) < 0
	})
	return out
}

// Latest returns the highest declared version.
func (c Catalog) Latest() string {
	latest := ""
	for _, u := range c {
		if latest == "" || MustCompare(u.Version, latest) > 0 {
			latest = u.Version
		}
	}
	return latest
}

// After returns, in ascending order, the units whose version is greater than current.
func (c Catalog) After(current string) (Catalog, error) {
	cur, err := ParseVersion(current)
	if err != nil {
		return nil, err
	}
	var pending Catalog
	for _, u := range c.Sorted() {
		v, _ := ParseVersion(u.Version)
		if compareSegments(v, cur) > 0 {
			pending = append(pending, u)
		}
	}
	return pending, nil
}

// Tx is what a unit mutates through. It is bound to the unit's own transaction.
type Tx struct {
	db        *gorm.DB
	inspector SchemaInspector
}

// DB returns the transaction handle for statements the helpers do not cover.
func (t *Tx) DB() *gorm.DB {
	return t.db
}

// Exec runs a statement inside the unit's transaction.
func (t *Tx) Exec(ctx context.Context, sql string, args ...interface{}) error {
	if err := t.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		return fmt.Errorf("exec %s: %w", abbreviate(sql), err)
	}
	return nil
}

// HasTable reports whether table exists.
func (t *Tx) HasTable(ctx context.Context, table string) (bool, error) {
	return t.inspector.HasTable(ctx, table)
}

// HasColumn reports whether table has column. A missing table has no columns.
func (t *Tx) HasColumn(ctx context.Context, table, column string) (bool, error) {
	cols, err := t.inspector.ColumnNames(ctx, table)
	if err != nil {
		return false, err
	}
	return cols.Has(column), nil
}

// EnsureTable runs ddl, and then each follow-up statement, only when table does not
// exist yet. It reports whether the table was created.
func (t *Tx) EnsureTable(ctx context.Context, table, ddl string, followUps ...string) (bool, error) {
	exists, err := t.HasTable(ctx, table)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := t.Exec(ctx, ddl); err != nil {
		return false, err
	}
	for _, stmt := range followUps {
		if err := t.Exec(ctx, stmt); err != nil {
			return false, err
		}
	}
	return true, nil
}

// EnsureColumn adds column to table with the given definition, e.g.
// "INTEGER NOT NULL DEFAULT 0", unless the column already exists. Existing rows take
// the definition's default. It reports whether the column was added.
func (t *Tx) EnsureColumn(ctx context.Context, table, column, definition string) (bool, error) {
	exists, err := t.HasColumn(ctx, table, column)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), quoteIdent(column), definition)
	if err := t.Exec(ctx, stmt); err != nil {
		return false, err
	}
	return true, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func abbreviate(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) <= 60 {
		return sql
	}
	return sql[:60] + "..."
}
