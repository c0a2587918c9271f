package memory

import (
	"fmt"
	"sync"

	"github.com/n1-ro/recoverpro/internal/app"
)

// CaptureStore is an in-memory implementation of app.CaptureStore. One
// session exists per applicant per scenario; sessions are closed when
// removed so any hardware release hook fires even on abandonment.
type CaptureStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.CaptureSession
}

func NewCaptureStore() *CaptureStore {
	return &CaptureStore{
		sessions: make(map[string]*app.CaptureSession),
	}
}

func (s *CaptureStore) GetOrCreate(userID string, scenarioID int64) *app.CaptureSession {
	key := captureKey(userID, scenarioID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		return session
	}
	session := app.NewCaptureSession(userID, scenarioID)
	s.sessions[key] = session
	return session
}

func (s *CaptureStore) Get(userID string, scenarioID int64) (*app.CaptureSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[captureKey(userID, scenarioID)]
	return session, ok
}

func (s *CaptureStore) Delete(userID string, scenarioID int64) {
	key := captureKey(userID, scenarioID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		session.Close()
		delete(s.sessions, key)
	}
}

func captureKey(userID string, scenarioID int64) string {
	return fmt.Sprintf("%s:%d", userID, scenarioID)
}
