package db

import (
	"io/fs"
	"strings"
	"testing"
)

// Every up migration needs a matching down migration so the schema can be rolled back.
func TestMigrations_Paired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	ups := 0
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			ups++
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			if !names[down] {
				t.Errorf("%s has no %s", name, down)
			}
		}
	}
	if ups == 0 {
		t.Fatal("no migrations embedded")
	}
}

func TestMigrations_PostsConstraints(t *testing.T) {
	b, err := fs.ReadFile(migrationsFS, "migrations/000002_create_posts.up.sql")
	if err != nil {
		t.Fatalf("read posts migration: %v", err)
	}
	sql := string(b)
	for _, want := range []string{"posts_slug_key UNIQUE (slug)", "views >= 0", "VARCHAR(200)", "VARCHAR(300)", "REFERENCES users"} {
		if !strings.Contains(sql, want) {
			t.Errorf("posts migration missing %q", want)
		}
	}
}
