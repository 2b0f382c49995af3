// internal/segment/service_test.go
package segment

import (
	"testing"

	"github.com/coursekit/reach/internal/types"
)

func TestReach_EmptyRootMatchesAll(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	for _, op := range []types.Operator{types.OpAnd, types.OpOr} {
		res := svc.Reach(testCtx(), rootRules(op), 10, 0)
		if res.Err != "" {
			t.Fatalf("Reach() err = %q, want empty", res.Err)
		}
		if res.Count != 5 {
			t.Errorf("Count = %d for empty %s root, want 5", res.Count, op)
		}
		if len(res.SampleUsers) != 5 {
			t.Errorf("len(SampleUsers) = %d, want 5", len(res.SampleUsers))
		}
	}
}

func TestReach_Scenario(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	or := svc.Reach(testCtx(), rootRules(types.OpOr, tagLeaf("tag-vip"), tagLeaf("tag-news")), 10, 0)
	if or.Err != "" {
		t.Fatalf("OR reach err = %q", or.Err)
	}
	if or.Count != 5 {
		t.Errorf("OR count = %d, want 5", or.Count)
	}
	if len(or.SampleUsers) != 5 {
		t.Errorf("OR sample size = %d, want 5", len(or.SampleUsers))
	}

	and := svc.Reach(testCtx(), rootRules(types.OpAnd, tagLeaf("tag-vip"), tagLeaf("tag-news")), 10, 0)
	if and.Err != "" {
		t.Fatalf("AND reach err = %q", and.Err)
	}
	if and.Count != 1 {
		t.Errorf("AND count = %d, want 1", and.Count)
	}
	if len(and.SampleUsers) != 1 || and.SampleUsers[0].ID != "u3" {
		t.Errorf("AND sample = %+v, want just u3", and.SampleUsers)
	}
}

func TestReach_DisjointSets(t *testing.T) {
	dbh := newTestDB(t)
	for _, u := range []struct{ id, email string }{
		{"a1", "a1@example.com"}, {"a2", "a2@example.com"}, {"a3", "a3@example.com"},
		{"b1", "b1@example.com"}, {"b2", "b2@example.com"}, {"b3", "b3@example.com"}, {"b4", "b4@example.com"},
	} {
		seedUser(t, dbh, u.id, u.email, "")
	}
	seedTag(t, dbh, "tag-a", "a", "a1", "a2", "a3")
	seedTag(t, dbh, "tag-b", "b", "b1", "b2", "b3", "b4")
	svc := newTestService(t, dbh, DefaultLimits())

	or := svc.Reach(testCtx(), rootRules(types.OpOr, tagLeaf("tag-a"), tagLeaf("tag-b")), 10, 0)
	if or.Count != 7 {
		t.Errorf("OR over disjoint 3+4 = %d, want 7", or.Count)
	}

	and := svc.Reach(testCtx(), rootRules(types.OpAnd, tagLeaf("tag-a"), tagLeaf("tag-b")), 10, 0)
	if and.Count != 0 {
		t.Errorf("AND over disjoint sets = %d, want 0", and.Count)
	}
	if and.Err != "" {
		t.Errorf("zero matches is not an error, got %q", and.Err)
	}
}

func TestReach_DeduplicatesMultiTagUsers(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	// u3 holds both tags; OR must count it once.
	res := svc.Reach(testCtx(), rootRules(types.OpOr, tagLeaf("tag-vip"), tagLeaf("tag-news")), 10, 0)
	if res.Count != 5 {
		t.Errorf("Count = %d, want 5 (u3 deduplicated)", res.Count)
	}
	seen := map[types.UserID]int{}
	for _, u := range res.SampleUsers {
		seen[u.ID]++
	}
	if seen["u3"] != 1 {
		t.Errorf("u3 appears %d times in sample, want 1", seen["u3"])
	}
}

func TestReach_IncompleteLeaf(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	// Inside OR: contributes nothing.
	or := svc.Reach(testCtx(), rootRules(types.OpOr, tagLeaf("tag-vip"), tagLeaf("")), 10, 0)
	if or.Count != 3 {
		t.Errorf("OR with placeholder leaf count = %d, want 3", or.Count)
	}

	// Inside AND: forces the group to zero.
	and := svc.Reach(testCtx(), rootRules(types.OpAnd, tagLeaf("tag-vip"), tagLeaf("")), 10, 0)
	if and.Count != 0 {
		t.Errorf("AND with placeholder leaf count = %d, want 0", and.Count)
	}
	if and.Err != "" {
		t.Errorf("placeholder leaf is not an error, got %q", and.Err)
	}
}

func TestReach_NotOperator(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	// NOT(vip): u4, u5.
	res := svc.Reach(testCtx(), rootRules(types.OpNot, tagLeaf("tag-vip")), 10, 0)
	if res.Count != 2 {
		t.Errorf("NOT(vip) count = %d, want 2", res.Count)
	}

	// vip AND NOT(newsletter): u1, u2.
	mixed := svc.Reach(testCtx(), rootRules(types.OpAnd,
		tagLeaf("tag-vip"),
		group(types.OpNot, tagLeaf("tag-news")),
	), 10, 0)
	if mixed.Count != 2 {
		t.Errorf("vip AND NOT(newsletter) count = %d, want 2", mixed.Count)
	}
}

func TestReach_SampleOrderingAndWindow(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	res := svc.Reach(testCtx(), rootRules(types.OpAnd), 2, 0)
	if res.Count != 5 {
		t.Fatalf("Count = %d, want 5", res.Count)
	}
	// Count reflects the whole population regardless of the window size.
	if len(res.SampleUsers) != 2 {
		t.Fatalf("len(SampleUsers) = %d, want 2", len(res.SampleUsers))
	}
	if res.SampleUsers[0].Email != "a@example.com" || res.SampleUsers[1].Email != "b@example.com" {
		t.Errorf("sample order = %+v, want email ascending", res.SampleUsers)
	}

	next := svc.Reach(testCtx(), rootRules(types.OpAnd), 2, 2)
	if len(next.SampleUsers) != 2 || next.SampleUsers[0].Email != "c@example.com" {
		t.Errorf("offset window = %+v, want to start at c@example.com", next.SampleUsers)
	}
}

func TestReach_Idempotent(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	segRules := rootRules(types.OpOr, tagLeaf("tag-vip"), tagLeaf("tag-news"))
	first := svc.Reach(testCtx(), segRules, 10, 0)
	second := svc.Reach(testCtx(), segRules, 10, 0)
	if first.Count != second.Count {
		t.Errorf("counts differ between identical calls: %d vs %d", first.Count, second.Count)
	}
	if len(first.SampleUsers) != len(second.SampleUsers) {
		t.Fatalf("sample sizes differ: %d vs %d", len(first.SampleUsers), len(second.SampleUsers))
	}
	for i := range first.SampleUsers {
		if first.SampleUsers[i] != second.SampleUsers[i] {
			t.Errorf("sample[%d] differs: %+v vs %+v", i, first.SampleUsers[i], second.SampleUsers[i])
		}
	}
}

func TestReach_DepthGuardSurfacesAsEnvelope(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	inner := tagLeaf("tag-vip")
	for i := 0; i < 10; i++ {
		inner = group(types.OpAnd, inner)
	}

	res := svc.Reach(testCtx(), rootRules(types.OpAnd, inner), 10, 0)
	if res.Err == "" {
		t.Fatal("expected envelope error for over-deep tree, got none")
	}
	if res.Count != 0 || len(res.SampleUsers) != 0 {
		t.Errorf("failed reach must degrade to empty: count=%d sample=%d", res.Count, len(res.SampleUsers))
	}
}

func TestReach_DoesNotMutateCallerTree(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	segRules := types.SegmentRules{
		Operator: "BOGUS",
		Conditions: []types.Condition{
			tagLeaf("tag-vip"),
			{}, // unknown-kind condition as decoded from a newer client
		},
	}
	svc.Reach(testCtx(), segRules, 10, 0)

	if segRules.Operator != "BOGUS" {
		t.Errorf("caller operator rewritten to %q", segRules.Operator)
	}
	if len(segRules.Conditions) != 2 {
		t.Errorf("caller conditions mutated: %d, want 2", len(segRules.Conditions))
	}
}

func TestExportAll_ContainsSample(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	svc := newTestService(t, dbh, DefaultLimits())

	segRules := rootRules(types.OpOr, tagLeaf("tag-vip"), tagLeaf("tag-news"))
	reach := svc.Reach(testCtx(), segRules, 3, 0)
	export := svc.ExportAll(testCtx(), segRules)
	if export.Err != "" {
		t.Fatalf("ExportAll() err = %q", export.Err)
	}

	exported := map[types.UserID]bool{}
	for _, u := range export.Users {
		exported[u.ID] = true
	}
	for _, u := range reach.SampleUsers {
		if !exported[u.ID] {
			t.Errorf("sample user %s missing from export", u.ID)
		}
	}
	if len(export.Users) != reach.Count {
		t.Errorf("export size = %d, want count %d (not truncated)", len(export.Users), reach.Count)
	}
}

func TestExportAll_RespectsCap(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	limits := DefaultLimits()
	limits.ExportCap = 3
	svc := newTestService(t, dbh, limits)

	export := svc.ExportAll(testCtx(), rootRules(types.OpAnd))
	if export.Err != "" {
		t.Fatalf("ExportAll() err = %q", export.Err)
	}
	if len(export.Users) != 3 {
		t.Errorf("len(Users) = %d, want cap 3", len(export.Users))
	}
}

func TestResolveRecipients_PagesInternally(t *testing.T) {
	dbh := newTestDB(t)
	fixturePopulation(t, dbh)
	limits := DefaultLimits()
	limits.ResolvePageSize = 2 // force several keyset pages
	svc := newTestService(t, dbh, limits)

	ids, err := svc.ResolveRecipients(testCtx(), rootRules(types.OpOr, tagLeaf("tag-vip"), tagLeaf("tag-news")))
	if err != nil {
		t.Fatalf("ResolveRecipients() error = %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("len(ids) = %d, want 5", len(ids))
	}

	seen := map[types.UserID]bool{}
	var prev types.UserID
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s across pages", id)
		}
		seen[id] = true
		if id <= prev {
			t.Errorf("ids not strictly ascending: %s after %s", id, prev)
		}
		prev = id
	}
}

func TestResolveRecipients_GuardError(t *testing.T) {
	dbh := newTestDB(t)
	svc := newTestService(t, dbh, DefaultLimits())

	inner := tagLeaf("tag-a")
	for i := 0; i < 10; i++ {
		inner = group(types.OpAnd, inner)
	}
	if _, err := svc.ResolveRecipients(testCtx(), rootRules(types.OpAnd, inner)); err == nil {
		t.Fatal("expected error for over-deep tree")
	}
}
