package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
	"github.com/n1-ro/recoverpro/internal/infra/memory"
)

func newScenarioFixture() (*memory.Store, *app.ScenarioService) {
	store := memory.NewStore()
	return store, app.NewScenarioService(store)
}

func TestCreateScenarioAppendsToSequence(t *testing.T) {
	ctx := context.Background()
	_, svc := newScenarioFixture()

	first, err := svc.Create(ctx, "First", "desc", domain.ResponseAudio, true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.DisplayOrder != 10 {
		t.Fatalf("expected first display order 10, got %d", first.DisplayOrder)
	}

	second, err := svc.Create(ctx, "Second", "desc", domain.ResponseText, true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if second.DisplayOrder != first.DisplayOrder+10 {
		t.Fatalf("expected gap of 10 above highest, got %d", second.DisplayOrder)
	}
}

func TestCreateScenarioDefaultsToAudio(t *testing.T) {
	ctx := context.Background()
	_, svc := newScenarioFixture()

	sc, err := svc.Create(ctx, "Title", "desc", "carrier-pigeon", true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if sc.ResponseType != domain.ResponseAudio {
		t.Fatalf("expected audio default, got %s", sc.ResponseType)
	}
}

func TestCreateScenarioRequiresTitleAndDescription(t *testing.T) {
	ctx := context.Background()
	_, svc := newScenarioFixture()

	if _, err := svc.Create(ctx, "  ", "desc", domain.ResponseAudio, true); !errors.Is(err, domain.ErrInvalidScenario) {
		t.Fatalf("expected invalid scenario for blank title, got %v", err)
	}
	if _, err := svc.Create(ctx, "Title", "", domain.ResponseAudio, true); !errors.Is(err, domain.ErrInvalidScenario) {
		t.Fatalf("expected invalid scenario for blank description, got %v", err)
	}
}

func TestUpdateKeepsResponseType(t *testing.T) {
	ctx := context.Background()
	_, svc := newScenarioFixture()

	created, err := svc.Create(ctx, "Title", "desc", domain.ResponseText, true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	updated, err := svc.Update(ctx, created.ID, "New title", "new desc", false)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ResponseType != domain.ResponseText {
		t.Fatalf("response type must not change on update, got %s", updated.ResponseType)
	}
	if updated.Title != "New title" || updated.Active {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestMoveSwapsNeighbors(t *testing.T) {
	ctx := context.Background()
	store, svc := newScenarioFixture()

	a, _ := svc.Create(ctx, "A", "desc", domain.ResponseAudio, true)
	b, _ := svc.Create(ctx, "B", "desc", domain.ResponseAudio, true)
	c, _ := svc.Create(ctx, "C", "desc", domain.ResponseAudio, true)

	if err := svc.Move(ctx, c.ID, app.MoveUp); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	list, _ := store.ListScenarios(ctx)
	wantOrder := []int64{a.ID, c.ID, b.ID}
	for i, want := range wantOrder {
		if list[i].ID != want {
			t.Fatalf("expected order %v, got %d at %d", wantOrder, list[i].ID, i)
		}
	}

	// Moving past either end is a no-op.
	if err := svc.Move(ctx, a.ID, app.MoveUp); err != nil {
		t.Fatalf("no-op move failed: %v", err)
	}
	list, _ = store.ListScenarios(ctx)
	if list[0].ID != a.ID {
		t.Fatalf("expected top scenario unchanged, got %d", list[0].ID)
	}
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	store, svc := newScenarioFixture()

	sc, err := svc.Create(ctx, "Title", "desc", domain.ResponseAudio, true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err = store.CreateRecording(ctx, domain.Recording{
		ID: "rec-1", UserID: "u1", ScenarioID: sc.ID,
		StorageKey: "u1/recording-1.webm", FileFormat: "webm", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed recording: %v", err)
	}

	if err := svc.Delete(ctx, sc.ID); !errors.Is(err, domain.ErrScenarioInUse) {
		t.Fatalf("expected delete blocked, got %v", err)
	}

	// Retiring instead of deleting still works.
	toggled, err := svc.ToggleActive(ctx, sc.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if toggled.Active {
		t.Fatal("expected scenario retired")
	}

	unreferenced, _ := svc.Create(ctx, "Other", "desc", domain.ResponseAudio, true)
	if err := svc.Delete(ctx, unreferenced.ID); err != nil {
		t.Fatalf("delete of unreferenced scenario failed: %v", err)
	}
}

func TestWritesInvalidateCache(t *testing.T) {
	ctx := context.Background()
	_, svc := newScenarioFixture()

	var flushes int
	svc.InvalidateWith(func(context.Context) { flushes++ })

	sc, err := svc.Create(ctx, "Title", "desc", domain.ResponseText, true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.ToggleActive(ctx, sc.ID); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if err := svc.Delete(ctx, sc.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if flushes != 3 {
		t.Fatalf("expected a flush per write, got %d", flushes)
	}

	// Failed writes leave the cache alone.
	if _, err := svc.Create(ctx, "", "", domain.ResponseText, true); err == nil {
		t.Fatal("expected validation error")
	}
	if flushes != 3 {
		t.Fatalf("expected no flush on failure, got %d", flushes)
	}
}
