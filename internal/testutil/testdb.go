package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"gemdrop/internal/config"
	"gemdrop/internal/store"
)

// OpenTestStore opens a store inside a fresh schema of the database named
// by TEST_POSTGRES_DSN and plays every up migration into it. Tests skip
// when no test database is configured. The returned cleanup drops the
// schema again.
func OpenTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}

	schema := fmt.Sprintf("gemdrop_test_%d", time.Now().UnixNano())
	execAdmin(t, cfg.TestPostgresDSN, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize())

	st, err := store.New(scopedDSN(cfg.TestPostgresDSN, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, path := range upMigrations(t) {
		ddl, err := os.ReadFile(path)
		if err != nil {
			st.Close()
			t.Fatalf("read %s: %v", path, err)
		}
		if _, err := st.Pool.Exec(context.Background(), string(ddl)); err != nil {
			st.Close()
			t.Fatalf("apply %s: %v", filepath.Base(path), err)
		}
	}

	return st, func() {
		st.Close()
		ctx := context.Background()
		if conn, err := pgx.Connect(ctx, cfg.TestPostgresDSN); err == nil {
			_, _ = conn.Exec(ctx, "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
			_ = conn.Close(ctx)
		}
	}
}

// execAdmin runs one DDL statement on a short-lived connection outside
// the schema-scoped pool.
func execAdmin(t *testing.T, dsn, ddl string) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, ddl); err != nil {
		t.Fatalf("%s: %v", ddl, err)
	}
}

// upMigrations locates the module root by its go.mod and returns the
// migrations/*.up.sql files in apply order.
func upMigrations(t *testing.T) []string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("no go.mod above the test working directory")
		}
		dir = parent
	}

	entries, err := os.ReadDir(filepath.Join(dir, "migrations"))
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, filepath.Join(dir, "migrations", e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no up migrations under %s", filepath.Join(dir, "migrations"))
	}
	sort.Strings(files)
	return files
}

func scopedDSN(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}
