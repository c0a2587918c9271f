package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/n1-ro/recoverpro/internal/domain"
	"github.com/n1-ro/recoverpro/internal/infra/memory"
)

func TestScenarioCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	ctx := context.Background()

	store := memory.NewStore()
	_, _ = store.CreateScenario(ctx, domain.Scenario{Title: "A", DisplayOrder: 10, Active: true})
	loader := &countingLoader{ScenarioLoader: store}
	cache := NewScenarioCache(client, loader, time.Minute)

	scenarios, err := cache.ActiveScenarios(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scenarios) != 1 || loader.calls != 1 {
		t.Fatalf("expected one scenario via one loader call, got %d/%d", len(scenarios), loader.calls)
	}
	if !mr.Exists("scenarios:active") {
		t.Fatal("expected cached blob in redis")
	}

	// Second call should hit cache, loader not incremented.
	if _, err := cache.ActiveScenarios(ctx); err != nil {
		t.Fatalf("load 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestScenarioCacheInvalidateDropsKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	ctx := context.Background()

	store := memory.NewStore()
	_, _ = store.CreateScenario(ctx, domain.Scenario{Title: "A", DisplayOrder: 10, Active: true})
	loader := &countingLoader{ScenarioLoader: store}
	cache := NewScenarioCache(client, loader, time.Minute)

	_, _ = cache.ActiveScenarios(ctx)
	cache.Invalidate(ctx)
	if mr.Exists("scenarios:active") {
		t.Fatal("expected cache key removed")
	}

	_, _ = cache.ActiveScenarios(ctx)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.ScenarioLoader
	calls int
}

func (l *countingLoader) LoadActiveScenarios(ctx context.Context) ([]domain.Scenario, error) {
	l.calls++
	return l.ScenarioLoader.LoadActiveScenarios(ctx)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
