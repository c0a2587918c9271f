package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/n1-ro/recoverpro/internal/domain"
)

const activeScenariosKey = "scenarios:active"

// ScenarioLoader fetches the active scenario list from a backing store.
type ScenarioLoader interface {
	LoadActiveScenarios(ctx context.Context) ([]domain.Scenario, error)
}

// ScenarioCache caches the active, ordered scenario list in Redis as a
// JSON blob and falls back to the loader on cache miss. The list is read
// on every progress check and submission, so one key shared across
// instances keeps the database out of the hot path.
type ScenarioCache struct {
	client *redis.Client
	loader ScenarioLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewScenarioCache(client *redis.Client, loader ScenarioLoader, ttl time.Duration) *ScenarioCache {
	return &ScenarioCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ScenarioCache) ActiveScenarios(ctx context.Context) ([]domain.Scenario, error) {
	if cached, ok := c.fromCache(ctx); ok {
		return cached, nil
	}

	result, err, _ := c.sf.Do(activeScenariosKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := c.fromCache(ctx); ok {
			return cached, nil
		}

		scenarios, err := c.loader.LoadActiveScenarios(ctx)
		if err != nil {
			return nil, err
		}

		if blob, err := json.Marshal(scenarios); err == nil {
			_ = c.client.Set(ctx, activeScenariosKey, blob, c.ttlWithJitter()).Err()
		}
		return scenarios, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Scenario), nil
}

// Invalidate drops the cached list so scenario admin writes become
// visible to applicants without waiting out the TTL.
func (c *ScenarioCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, activeScenariosKey).Err()
}

func (c *ScenarioCache) fromCache(ctx context.Context) ([]domain.Scenario, bool) {
	blob, err := c.client.Get(ctx, activeScenariosKey).Bytes()
	if err != nil {
		return nil, false
	}
	var scenarios []domain.Scenario
	if err := json.Unmarshal(blob, &scenarios); err != nil {
		return nil, false
	}
	return scenarios, true
}

func (c *ScenarioCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
