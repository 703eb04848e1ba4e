package database

import (
	"fanshare/config"
	"path/filepath"
	"testing"
)

func openTestHandle(t *testing.T) *Handle {
	t.Helper()
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "test.db")
	h, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}
