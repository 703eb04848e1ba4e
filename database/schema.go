package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ErrSchemaInspection marks failures while reading table or column metadata.
var ErrSchemaInspection = errors.New("schema inspection failed")

// InspectionError reports which metadata lookup failed. It matches both
// ErrSchemaInspection and the underlying driver error.
type InspectionError struct {
	Op    string // "tables" or "columns"
	Table string
	Err   error
}

func (e *InspectionError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("inspect %s of %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("inspect %s: %v", e.Op, e.Err)
}

func (e *InspectionError) Unwrap() []error {
	return []error{ErrSchemaInspection, e.Err}
}

// NameSet is a set of SQLite identifiers. Lookups are case-insensitive, like SQLite.
type NameSet map[string]struct{}

func newNameSet(names []string) NameSet {
	set := make(NameSet, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// Sorted returns the members in lexical order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ColumnInfo describes one column as reported by pragma_table_info.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    *string // raw SQL default expression, nil when none
	PrimaryKey bool
}

type tableInfoRow struct {
	Name      string  `gorm:"column:name"`
	Type      string  `gorm:"column:type"`
	NotNull   int     `gorm:"column:notnull"`
	DfltValue *string `gorm:"column:dflt_value"`
	PK        int     `gorm:"column:pk"`
}

// SQLiteInspector reads schema metadata through whatever *gorm.DB it is bound to,
// including an open transaction.
type SQLiteInspector struct {
	db *gorm.DB
}

// NewSQLiteInspector binds an inspector to db.
func NewSQLiteInspector(db *gorm.DB) *SQLiteInspector {
	return &SQLiteInspector{db: db}
}

// TableNames lists user tables, excluding SQLite's internal sqlite_* tables.
func (i *SQLiteInspector) TableNames(ctx context.Context) (NameSet, error) {
	var names []string
	err := i.db.WithContext(ctx).
		Raw("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\\_%' ESCAPE '\\'").
		Scan(&names).Error
	if err != nil {
		return nil, &InspectionError{Op: "tables", Err: err}
	}
	return newNameSet(names), nil
}

// HasTable reports whether a table named name exists.
func (i *SQLiteInspector) HasTable(ctx context.Context, name string) (bool, error) {
	var count int64
	err := i.db.WithContext(ctx).
		Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE", name).
		Scan(&count).Error
	if err != nil {
		return false, &InspectionError{Op: "tables", Table: name, Err: err}
	}
	return count > 0, nil
}

// Columns describes the columns of table in declaration order. A missing table has no columns.
func (i *SQLiteInspector) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	var rows []tableInfoRow
	err := i.db.WithContext(ctx).
		Raw(`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table).
		Scan(&rows).Error
	if err != nil {
		return nil, &InspectionError{Op: "columns", Table: table, Err: err}
	}

	columns := make([]ColumnInfo, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, ColumnInfo{
			Name:       row.Name,
			Type:       row.Type,
			NotNull:    row.NotNull != 0,
			Default:    row.DfltValue,
			PrimaryKey: row.PK != 0,
		})
	}
	return columns, nil
}

// ColumnNames returns the column names of table.
func (i *SQLiteInspector) ColumnNames(ctx context.Context, table string) (NameSet, error) {
	columns, err := i.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return newNameSet(names), nil
}
