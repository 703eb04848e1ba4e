package migrate

import (
	"context"
	"fanshare/config"
	"fanshare/database"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
)

func openTestHandle(t *testing.T) *database.Handle {
	t.Helper()
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "fanshare.db")
	h, err := database.Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func newTestRunner(t *testing.T, h *database.Handle, catalog Catalog, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	r, err := NewRunner(h.DB, catalog, opts...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

// callLog records which units were invoked, in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) wrap(c Catalog) Catalog {
	out := make(Catalog, len(c))
	for i, u := range c {
		u := u
		apply := u.Apply
		u.Apply = func(ctx context.Context, tx *Tx) error {
			l.mu.Lock()
			l.calls = append(l.calls, u.Version)
			l.mu.Unlock()
			return apply(ctx, tx)
		}
		out[i] = u
	}
	return out
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func ledgerVersion(t *testing.T, h *database.Handle) string {
	t.Helper()
	v, ok, err := database.NewSettingsStore(h.DB).GetSetting(context.Background(), database.VersionKey)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if !ok {
		t.Fatalf("ledger row missing")
	}
	return v
}

func tableNames(t *testing.T, h *database.Handle) []string {
	t.Helper()
	names, err := database.NewSQLiteInspector(h.DB).TableNames(context.Background())
	if err != nil {
		t.Fatalf("TableNames: %v", err)
	}
	return names.Sorted()
}

func column(t *testing.T, h *database.Handle, table, name string) (database.ColumnInfo, bool) {
	t.Helper()
	cols, err := database.NewSQLiteInspector(h.DB).Columns(context.Background(), table)
	if err != nil {
		t.Fatalf("Columns(%s): %v", table, err)
	}
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return database.ColumnInfo{}, false
}

// schemaSnapshot maps each table to its column names.
func schemaSnapshot(t *testing.T, h *database.Handle) map[string][]string {
	t.Helper()
	out := map[string][]string{}
	inspector := database.NewSQLiteInspector(h.DB)
	for _, table := range tableNames(t, h) {
		cols, err := inspector.ColumnNames(context.Background(), table)
		if err != nil {
			t.Fatalf("ColumnNames(%s): %v", table, err)
		}
		out[table] = cols.Sorted()
	}
	return out
}
