package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"conti/internal/core"
	"conti/internal/store"
)

func manyDocs(n int) []store.Document {
	docs := make([]store.Document, n)
	for i := range docs {
		docs[i] = store.Document{
			ID: fmt.Sprintf("d%04d", i),
			Fields: map[string]any{
				core.FieldDate:     "2026-01-15",
				core.FieldCategory: "bulk",
				"description":      fmt.Sprintf("expense %04d", i),
				"amountCents":      int64(i + 1),
			},
		}
	}
	return docs
}

func TestCreateManyChunks(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())

	count, err := svc.Mutations().CreateMany(context.Background(), "alice", "expenses", manyDocs(1000))
	if err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	if count != 1000 {
		t.Errorf("count = %d, want 1000", count)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(cs.commits))
	}
	for i, want := range []int{450, 450, 100} {
		if len(cs.commits[i]) != want {
			t.Errorf("chunk %d has %d writes, want %d", i, len(cs.commits[i]), want)
		}
	}
}

func TestCreateManyStopsAtFirstFailedChunk(t *testing.T) {
	svc, cs, mem := newTestService(t, testConfig())
	cs.failCommit = 2

	_, err := svc.Mutations().CreateMany(context.Background(), "alice", "expenses", manyDocs(1000))
	if err == nil {
		t.Fatal("expected the second chunk to fail the call")
	}
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("error = %v", err)
	}

	cs.mu.Lock()
	commits := len(cs.commits)
	cs.mu.Unlock()
	if commits != 2 {
		t.Errorf("made %d commit attempts, want 2 (no third chunk)", commits)
	}

	// The first chunk stays committed.
	docs, listErr := mem.List(context.Background(), store.Query{Owner: "alice", Collection: "expenses", Limit: store.NoLimit})
	if listErr != nil {
		t.Fatalf("List: %v", listErr)
	}
	if len(docs) != 450 {
		t.Errorf("store holds %d records, want the 450 from the committed chunk", len(docs))
	}
}

func TestCreateManyInvalidatesCachedLists(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses", expenseDoc("a", "2026-01-15", "food"))

	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	if cs.lists() != 1 {
		t.Fatalf("prime failed, %d lists", cs.lists())
	}

	mustCreate(t, svc, "alice", "expenses", expenseDoc("b", "2026-01-16", "food"))

	docs := svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	if cs.lists() != 2 {
		t.Errorf("create did not invalidate the cached list (%d lists)", cs.lists())
	}
	if len(docs) != 2 {
		t.Errorf("post-create query returned %d records", len(docs))
	}
}

func TestCreateManyValidation(t *testing.T) {
	svc, _, _ := newTestService(t, testConfig())
	ctx := context.Background()

	if _, err := svc.Mutations().CreateMany(ctx, "alice", "expenses", nil); !errors.Is(err, ErrNoRecords) {
		t.Errorf("empty batch: %v", err)
	}
	if _, err := svc.Mutations().CreateMany(ctx, "alice", "nope", manyDocs(1)); !errors.Is(err, core.ErrUnknownDomain) {
		t.Errorf("unknown domain: %v", err)
	}
	if _, err := svc.Mutations().CreateMany(ctx, "alice", "goals/G1", manyDocs(1)); !errors.Is(err, core.ErrInvalidCollection) {
		t.Errorf("even segment count: %v", err)
	}
}

func TestCreateManyRejectsSchemaInvalidRecords(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()

	noDescription := store.Document{ID: "e1", Fields: map[string]any{
		core.FieldDate:     "2026-01-15",
		core.FieldCategory: "food",
		"amountCents":      int64(300),
	}}
	if _, err := svc.Mutations().CreateMany(ctx, "alice", "expenses", []store.Document{noDescription}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Errorf("expense without description: %v", err)
	}

	targetless := store.Document{ID: "g1", Fields: map[string]any{"name": "vacation"}}
	if _, err := svc.Mutations().CreateMany(ctx, "alice", "goals", []store.Document{targetless}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("goal without target: %v", err)
	}

	cs.mu.Lock()
	commits := len(cs.commits)
	cs.mu.Unlock()
	if commits != 0 {
		t.Errorf("rejected batches reached the store (%d commits)", commits)
	}

	// Nested sub-resources carry no typed schema.
	contribution := store.Document{ID: "c1", Fields: map[string]any{"amountCents": int64(100)}}
	if _, err := svc.Mutations().CreateMany(ctx, "alice", "goals/G1/contributions", []store.Document{contribution}); err != nil {
		t.Errorf("nested create rejected: %v", err)
	}
}

func TestUpdatePatchesCachedListsInPlace(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses",
		expenseDoc("a", "2026-01-15", "food"),
		expenseDoc("b", "2026-01-16", "food"),
	)
	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	baseline := cs.lists()

	if err := svc.Mutations().Update(ctx, "alice", "expenses", "a",
		map[string]any{core.FieldCategory: "travel"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	docs := svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	if cs.lists() != baseline {
		t.Errorf("update must patch, not invalidate; remote reads went %d -> %d", baseline, cs.lists())
	}
	for _, d := range docs {
		if d.ID == "a" && d.Fields[core.FieldCategory] != "travel" {
			t.Errorf("patched record not visible: %v", d.Fields)
		}
		if d.ID == "b" && d.Fields[core.FieldCategory] != "food" {
			t.Errorf("unrelated record was touched: %v", d.Fields)
		}
	}
}

func TestDeleteRemovesFromCachedLists(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses",
		expenseDoc("a", "2026-01-15", "food"),
		expenseDoc("b", "2026-01-16", "food"),
	)
	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	baseline := cs.lists()

	if err := svc.Mutations().Delete(ctx, "alice", "expenses", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	docs := svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	if cs.lists() != baseline {
		t.Errorf("single delete must patch, not invalidate (%d -> %d)", baseline, cs.lists())
	}
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Errorf("post-delete cache = %v", docs)
	}
}

func TestUpdateAndDeleteValidation(t *testing.T) {
	svc, _, _ := newTestService(t, testConfig())
	ctx := context.Background()

	if err := svc.Mutations().Update(ctx, "alice", "expenses", "", map[string]any{"x": 1}); !errors.Is(err, ErrMissingID) {
		t.Errorf("missing id: %v", err)
	}
	if err := svc.Mutations().Update(ctx, "alice", "expenses", "a", nil); !errors.Is(err, ErrNoFields) {
		t.Errorf("no fields: %v", err)
	}
	if err := svc.Mutations().Delete(ctx, "alice", "expenses", ""); !errors.Is(err, ErrMissingID) {
		t.Errorf("delete missing id: %v", err)
	}
	if _, err := svc.Mutations().DeleteMany(ctx, "alice", "expenses", []string{"a", ""}); !errors.Is(err, ErrMissingID) {
		t.Errorf("delete many with blank id: %v", err)
	}
	if _, err := svc.Mutations().DeleteMany(ctx, "alice", "expenses", nil); !errors.Is(err, ErrNoRecords) {
		t.Errorf("delete many empty: %v", err)
	}
}

func TestDeleteManyChunksAndInvalidates(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses", manyDocs(600)...)
	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{Limit: store.NoLimit})

	ids := make([]string, 600)
	for i := range ids {
		ids[i] = fmt.Sprintf("d%04d", i)
	}

	cs.mu.Lock()
	commitsBefore := len(cs.commits)
	cs.mu.Unlock()

	count, err := svc.Mutations().DeleteMany(ctx, "alice", "expenses", ids)
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if count != 600 {
		t.Errorf("count = %d", count)
	}

	cs.mu.Lock()
	deleteCommits := len(cs.commits) - commitsBefore
	cs.mu.Unlock()
	if deleteCommits != 2 {
		t.Errorf("600 deletes should commit in 2 chunks, got %d", deleteCommits)
	}

	listsBefore := cs.lists()
	docs := svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{Limit: store.NoLimit})
	if cs.lists() == listsBefore {
		t.Error("bulk delete should invalidate cached lists")
	}
	if len(docs) != 0 {
		t.Errorf("%d records survived delete-many", len(docs))
	}
}

func TestDeleteAll(t *testing.T) {
	svc, _, mem := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses", manyDocs(520)...)
	mustCreate(t, svc, "bob", "expenses", expenseDoc("keep", "2026-01-15", "food"))

	count, err := svc.Mutations().DeleteAll(ctx, "alice", "expenses")
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if count != 520 {
		t.Errorf("count = %d, want 520 (beyond the default read limit)", count)
	}

	left, _ := mem.List(ctx, store.Query{Owner: "alice", Collection: "expenses", Limit: store.NoLimit})
	if len(left) != 0 {
		t.Errorf("%d records survived delete-all", len(left))
	}
	bobs, _ := mem.List(ctx, store.Query{Owner: "bob", Collection: "expenses"})
	if len(bobs) != 1 {
		t.Error("delete-all leaked into another owner")
	}

	// Empty collection is a no-op success.
	count, err = svc.Mutations().DeleteAll(ctx, "alice", "expenses")
	if err != nil || count != 0 {
		t.Errorf("empty delete-all: count=%d err=%v", count, err)
	}
}

func TestMutationsNilStoreNoOp(t *testing.T) {
	svc := New(testConfig(), nil, nil)
	ctx := context.Background()

	count, err := svc.Mutations().CreateMany(ctx, "alice", "expenses", manyDocs(3))
	if err != nil || count != 0 {
		t.Errorf("disabled create: count=%d err=%v", count, err)
	}
	if err := svc.Mutations().Update(ctx, "alice", "expenses", "a", map[string]any{"x": 1}); err != nil {
		t.Errorf("disabled update: %v", err)
	}
	if err := svc.Mutations().Delete(ctx, "alice", "expenses", "a"); err != nil {
		t.Errorf("disabled delete: %v", err)
	}
	count, err = svc.Mutations().DeleteAll(ctx, "alice", "expenses")
	if err != nil || count != 0 {
		t.Errorf("disabled delete-all: count=%d err=%v", count, err)
	}
}

func TestResetOwnerDropsOnlyThatOwner(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses", expenseDoc("a", "2026-01-15", "food"))
	mustCreate(t, svc, "bob", "expenses", expenseDoc("b", "2026-01-15", "food"))

	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	svc.Queries().Query(ctx, "bob", "expenses", QueryOptions{})
	baseline := cs.lists()

	svc.ResetOwner("alice")

	svc.Queries().Query(ctx, "bob", "expenses", QueryOptions{})
	if cs.lists() != baseline {
		t.Error("bob's cache entry should have survived the reset")
	}
	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	if cs.lists() != baseline+1 {
		t.Error("alice's cache entry should have been dropped")
	}
}

func TestResetAllDropsEverything(t *testing.T) {
	svc, cs, _ := newTestService(t, testConfig())
	ctx := context.Background()
	mustCreate(t, svc, "alice", "expenses", expenseDoc("a", "2026-01-15", "food"))
	mustCreate(t, svc, "bob", "tags", store.Document{ID: "t1", Fields: map[string]any{"name": "x"}})

	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	svc.Queries().Query(ctx, "bob", "tags", QueryOptions{})
	baseline := cs.lists()

	svc.ResetAll()

	svc.Queries().Query(ctx, "alice", "expenses", QueryOptions{})
	svc.Queries().Query(ctx, "bob", "tags", QueryOptions{})
	if cs.lists() != baseline+2 {
		t.Errorf("reset-all left entries behind (%d -> %d)", baseline, cs.lists())
	}
}
