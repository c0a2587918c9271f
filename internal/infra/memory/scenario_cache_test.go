package memory

import (
	"context"
	"testing"
	"time"

	"github.com/n1-ro/recoverpro/internal/domain"
)

func TestScenarioCacheCaches(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, _ = store.CreateScenario(ctx, domain.Scenario{Title: "A", DisplayOrder: 10, Active: true})

	loader := &countingLoader{ScenarioLoader: store}
	cache := NewScenarioCache(loader, time.Minute)

	if _, err := cache.ActiveScenarios(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.ActiveScenarios(ctx); err != nil {
		t.Fatalf("load 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestScenarioCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, _ = store.CreateScenario(ctx, domain.Scenario{Title: "A", DisplayOrder: 10, Active: true})

	loader := &countingLoader{ScenarioLoader: store}
	cache := NewScenarioCache(loader, time.Minute)

	_, _ = cache.ActiveScenarios(ctx)
	_, _ = store.CreateScenario(ctx, domain.Scenario{Title: "B", DisplayOrder: 20, Active: true})

	cache.Invalidate()
	scenarios, err := cache.ActiveScenarios(ctx)
	if err != nil {
		t.Fatalf("load after invalidate: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected fresh list after invalidate, got %d entries", len(scenarios))
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload, loader calls %d", loader.calls)
	}
}

type countingLoader struct {
	ScenarioLoader
	calls int
}

func (l *countingLoader) LoadActiveScenarios(ctx context.Context) ([]domain.Scenario, error) {
	l.calls++
	return l.ScenarioLoader.LoadActiveScenarios(ctx)
}
