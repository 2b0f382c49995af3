// internal/segment/segment_test.go
package segment

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	coredb "github.com/coursekit/reach/internal/core/db"
	"github.com/coursekit/reach/internal/rules"
	"github.com/coursekit/reach/internal/types"
)

// newTestDB opens a migrated SQLite database in a per-test temp dir.
// A file-backed database (not :memory:) keeps the schema visible across
// pooled connections.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbh, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "reach_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	if err := coredb.MigrateUp(dbh); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbh
}

// seedUser inserts a user row.
func seedUser(t *testing.T, dbh *sqlx.DB, id, email, name string) {
	t.Helper()
	_, err := dbh.Exec(
		"INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)",
		id, email, name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

// seedTag inserts a tag and attaches it to the given users.
func seedTag(t *testing.T, dbh *sqlx.DB, id, name string, userIDs ...string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := dbh.Exec("INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)", id, name, now); err != nil {
		t.Fatalf("seed tag %s: %v", id, err)
	}
	for _, uid := range userIDs {
		if _, err := dbh.Exec("INSERT INTO user_tags (user_id, tag_id, created_at) VALUES (?, ?, ?)", uid, id, now); err != nil {
			t.Fatalf("seed user_tag %s/%s: %v", uid, id, err)
		}
	}
}

// newTestService wires an executor and facade over a seeded database.
func newTestService(t *testing.T, dbh *sqlx.DB, limits Limits) *Service {
	t.Helper()
	exec := NewExecutor(dbh, limits)
	return NewService(exec, rules.DefaultGuards(), slog.Default())
}

// fixturePopulation seeds the vip/newsletter scenario:
// users u1..u5, vip on {u1,u2,u3}, newsletter on {u3,u4,u5}.
func fixturePopulation(t *testing.T, dbh *sqlx.DB) {
	t.Helper()
	for _, u := range []struct{ id, email, name string }{
		{"u1", "a@example.com", "Ada"},
		{"u2", "b@example.com", "Ben"},
		{"u3", "c@example.com", "Cam"},
		{"u4", "d@example.com", "Dee"},
		{"u5", "e@example.com", "Eli"},
	} {
		seedUser(t, dbh, u.id, u.email, u.name)
	}
	seedTag(t, dbh, "tag-vip", "vip", "u1", "u2", "u3")
	seedTag(t, dbh, "tag-news", "newsletter", "u3", "u4", "u5")
}

func tagLeaf(id string) types.Condition {
	return types.Condition{Tag: &types.TagCondition{TagID: types.TagID(id)}}
}

func group(op types.Operator, conds ...types.Condition) types.Condition {
	return types.Condition{Group: &types.GroupCondition{Operator: op, Conditions: conds}}
}

func rootRules(op types.Operator, conds ...types.Condition) types.SegmentRules {
	return types.SegmentRules{Operator: op, Conditions: conds}
}

func testCtx() context.Context {
	return context.Background()
}
