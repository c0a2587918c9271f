package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// ObjectStore keeps uploaded audio in process. It stands in for the bucket
// in unit tests and no-storage development mode; signed URLs are synthetic
// but stable for the object's lifetime.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
}

type storedObject struct {
	data        []byte
	contentType string
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]storedObject)}
}

func (s *ObjectStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[key] = storedObject{data: copied, contentType: contentType}
	return nil
}

func (s *ObjectStore) Stat(_ context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return domain.ErrObjectNotFound
	}
	return nil
}

func (s *ObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", domain.ErrObjectNotFound
	}
	return fmt.Sprintf("memory://objects/%s", key), nil
}

// Object returns the stored bytes, for tests.
func (s *ObjectStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// Remove deletes an object, for tests exercising missing-file handling.
func (s *ObjectStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}
