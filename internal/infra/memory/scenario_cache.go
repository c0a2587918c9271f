package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// ScenarioLoader fetches the active scenario list from a backing store.
type ScenarioLoader interface {
	LoadActiveScenarios(ctx context.Context) ([]domain.Scenario, error)
}

// ScenarioCache caches the active, ordered scenario list with TTL so the
// assessment flow does not hit the database on every progress check.
type ScenarioCache struct {
	loader ScenarioLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	scenarios []domain.Scenario
	expiresAt time.Time
}

func NewScenarioCache(loader ScenarioLoader, ttl time.Duration) *ScenarioCache {
	return &ScenarioCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ScenarioCache) ActiveScenarios(ctx context.Context) ([]domain.Scenario, error) {
	now := c.clock()

	c.mu.RLock()
	if c.scenarios != nil && c.expiresAt.After(now) {
		cached := c.scenarios
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("active", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.scenarios != nil && c.expiresAt.After(now) {
			cached := c.scenarios
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		scenarios, err := c.loader.LoadActiveScenarios(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.scenarios = scenarios
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return scenarios, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Scenario), nil
}

// Invalidate drops the cached list. Scenario admin writes call this so
// applicants see ordering changes without waiting out the TTL.
func (c *ScenarioCache) Invalidate() {
	c.mu.Lock()
	c.scenarios = nil
	c.mu.Unlock()
}

func (c *ScenarioCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
