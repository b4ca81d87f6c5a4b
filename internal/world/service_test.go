package world_test

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mycraft.gg/internal/persistence/worlddb"
	"mycraft.gg/internal/world"
)

func newTestService(t *testing.T) *world.Service {
	t.Helper()
	store, err := worlddb.OpenSQLite(filepath.Join(t.TempDir(), "worlds.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return world.NewService(store, log.New(io.Discard, "", 0))
}

func TestCreateWorld_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateWorld(ctx, "seed-42")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("expected positive id, got %d", created.ID)
	}
	if created.Seed != "seed-42" {
		t.Fatalf("seed mismatch: %q", created.Seed)
	}
	if len(created.Changes) != 0 {
		t.Fatalf("fresh world must have empty changes, got %d", len(created.Changes))
	}
	if created.LastUpdated.IsZero() {
		t.Fatalf("last_updated not set")
	}

	got, err := svc.GetWorld(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetWorld: %v", err)
	}
	if got.ID != created.ID || got.Seed != "seed-42" || len(got.Changes) != 0 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCreateWorld_EmptySeedRejected(t *testing.T) {
	svc := newTestService(t)
	for _, seed := range []string{"", "   "} {
		_, err := svc.CreateWorld(context.Background(), seed)
		var verr *world.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("seed %q: expected ValidationError, got %v", seed, err)
		}
		if verr.Field != "seed" {
			t.Fatalf("seed %q: wrong field %q", seed, verr.Field)
		}
	}
}

func TestApplyChanges_AppendsInOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorld(ctx, "s")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	first := []world.BlockChange{
		{X: 0, Y: 0, Z: 0, Type: "stone", Action: world.ActionPlace},
		{X: 1, Y: 0, Z: 0, Type: "dirt", Action: world.ActionPlace},
	}
	second := []world.BlockChange{
		{X: 0, Y: 0, Z: 0, Action: world.ActionRemove},
	}

	if _, err := svc.ApplyChanges(ctx, w.ID, first); err != nil {
		t.Fatalf("ApplyChanges first: %v", err)
	}
	updated, err := svc.ApplyChanges(ctx, w.ID, second)
	if err != nil {
		t.Fatalf("ApplyChanges second: %v", err)
	}
	if len(updated.Changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(updated.Changes))
	}

	got, err := svc.GetWorld(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorld: %v", err)
	}
	want := append(append([]world.BlockChange{}, first...), second...)
	if len(got.Changes) != len(want) {
		t.Fatalf("expected %d changes, got %d", len(want), len(got.Changes))
	}
	for i := range want {
		if got.Changes[i] != want[i] {
			t.Fatalf("change %d mismatch: got %+v want %+v", i, got.Changes[i], want[i])
		}
	}
}

func TestApplyChanges_InvalidBatchRejectedWhole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorld(ctx, "s")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	batch := []world.BlockChange{
		{X: 0, Y: 0, Z: 0, Type: "stone", Action: world.ActionPlace},
		{X: 1, Y: 0, Z: 0, Type: "tnt", Action: "explode"},
	}
	_, err = svc.ApplyChanges(ctx, w.ID, batch)
	var verr *world.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "changes[1].action" {
		t.Fatalf("wrong field: %q", verr.Field)
	}

	got, err := svc.GetWorld(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorld: %v", err)
	}
	if len(got.Changes) != 0 {
		t.Fatalf("rejected batch must not persist anything, got %d changes", len(got.Changes))
	}
}

func TestApplyChanges_PlaceRequiresType(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorld(ctx, "s")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	_, err = svc.ApplyChanges(ctx, w.ID, []world.BlockChange{
		{X: 0, Y: 0, Z: 0, Type: "", Action: world.ActionPlace},
	})
	var verr *world.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "changes[0].type" {
		t.Fatalf("wrong field: %q", verr.Field)
	}

	// A remove with an empty type is fine.
	if _, err := svc.ApplyChanges(ctx, w.ID, []world.BlockChange{
		{X: 0, Y: 0, Z: 0, Type: "", Action: world.ActionRemove},
	}); err != nil {
		t.Fatalf("remove with empty type: %v", err)
	}
}

func TestApplyChanges_EmptyBatchAdvancesTimestamp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorld(ctx, "s")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	updated, err := svc.ApplyChanges(ctx, w.ID, nil)
	if err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if !updated.LastUpdated.After(w.LastUpdated) {
		t.Fatalf("last_updated did not advance: %v -> %v", w.LastUpdated, updated.LastUpdated)
	}
	if len(updated.Changes) != 0 {
		t.Fatalf("empty batch appended changes: %d", len(updated.Changes))
	}
}

func TestNotFound_Kinds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetWorld(ctx, 999)
	if !world.IsNotFound(err) {
		t.Fatalf("GetWorld: expected NotFound, got %v", err)
	}

	_, err = svc.ApplyChanges(ctx, 999, []world.BlockChange{
		{X: 0, Y: 0, Z: 0, Type: "stone", Action: world.ActionPlace},
	})
	if !world.IsNotFound(err) {
		t.Fatalf("ApplyChanges: expected NotFound, got %v", err)
	}
	var verr *world.ValidationError
	if errors.As(err, &verr) {
		t.Fatalf("NotFound must not be a validation error")
	}
}

func TestApplyChanges_ConcurrentBatchesDoNotInterleave(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, err := svc.CreateWorld(ctx, "s")
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}

	const n = 8
	mkBatch := func(prefix string) []world.BlockChange {
		batch := make([]world.BlockChange, n)
		for i := range batch {
			batch[i] = world.BlockChange{X: i, Type: prefix, Action: world.ActionPlace}
		}
		return batch
	}
	a := mkBatch("a")
	b := mkBatch("b")

	var wg sync.WaitGroup
	wg.Add(2)
	for _, batch := range [][]world.BlockChange{a, b} {
		batch := batch
		go func() {
			defer wg.Done()
			if _, err := svc.ApplyChanges(ctx, w.ID, batch); err != nil {
				t.Errorf("ApplyChanges: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := svc.GetWorld(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorld: %v", err)
	}
	if len(got.Changes) != 2*n {
		t.Fatalf("lost update: expected %d changes, got %d", 2*n, len(got.Changes))
	}

	// The log must equal a++b or b++a, never an interleaving.
	matches := func(want []world.BlockChange, at int) bool {
		for i := range want {
			if got.Changes[at+i] != want[i] {
				return false
			}
		}
		return true
	}
	aThenB := matches(a, 0) && matches(b, n)
	bThenA := matches(b, 0) && matches(a, n)
	if !aThenB && !bThenA {
		t.Fatalf("batches interleaved: %+v", got.Changes)
	}
}

func TestStats_Counters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	w, _ := svc.CreateWorld(ctx, "s")
	_, _ = svc.ApplyChanges(ctx, w.ID, []world.BlockChange{
		{Type: "stone", Action: world.ActionPlace},
		{Action: world.ActionRemove},
	})
	_, _ = svc.ApplyChanges(ctx, w.ID, []world.BlockChange{{Action: "explode"}})

	st := svc.Stats()
	if st.WorldsCreated != 1 || st.AppendsCommitted != 1 || st.ChangesAppended != 2 || st.BatchesRejected != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
