package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/n1-ro/recoverpro/internal/app"
)

// CaptureStore is a Redis-aware implementation of app.CaptureStore.
// Notes:
//   - Capture sessions hold raw audio chunks and a hardware release hook,
//     so the sessions themselves stay in the local map; serializing them
//     would break exactly-once release.
//   - Redis marks session liveness so operators can see which applicants
//     have an open capture and on which instance it lives.
//   - True cross-instance capture would need sticky routing on the
//     recording channel; the liveness marker is the seam for that.
type CaptureStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.CaptureSession
}

func NewCaptureStore(client *redis.Client, ttl time.Duration) *CaptureStore {
	return &CaptureStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.CaptureSession),
	}
}

func (s *CaptureStore) GetOrCreate(userID string, scenarioID int64) *app.CaptureSession {
	key := s.key(userID, scenarioID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		return session
	}
	session := app.NewCaptureSession(userID, scenarioID)
	s.sessions[key] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), key, "1", s.ttl).Err()
	return session
}

func (s *CaptureStore) Get(userID string, scenarioID int64) (*app.CaptureSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[s.key(userID, scenarioID)]
	return session, ok
}

func (s *CaptureStore) Delete(userID string, scenarioID int64) {
	key := s.key(userID, scenarioID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		session.Close()
		delete(s.sessions, key)
		_ = s.client.Del(context.Background(), key).Err()
	}
}

func (s *CaptureStore) key(userID string, scenarioID int64) string {
	return "capture:" + userID + ":" + strconv.FormatInt(scenarioID, 10)
}
