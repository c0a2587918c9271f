package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
)

// Store keeps the whole portal dataset in process. It backs unit tests and
// the no-database development mode with the same semantics as the Postgres
// store, including the atomic rating upsert and the delete-while-referenced
// block.
type Store struct {
	mu             sync.RWMutex
	profiles       map[string]domain.Profile
	scenarios      map[int64]domain.Scenario
	nextScenarioID int64
	recordings     map[string]domain.Recording
	textResponses  map[string]domain.TextResponse
	ratings        map[string]domain.ResponseRating
	resetTokens    map[string]resetToken
	clock          func() time.Time
}

type resetToken struct {
	userID    string
	expiresAt time.Time
}

func NewStore() *Store {
	return &Store{
		profiles:       make(map[string]domain.Profile),
		scenarios:      make(map[int64]domain.Scenario),
		nextScenarioID: 1,
		recordings:     make(map[string]domain.Recording),
		textResponses:  make(map[string]domain.TextResponse),
		ratings:        make(map[string]domain.ResponseRating),
		resetTokens:    make(map[string]resetToken),
		clock:          time.Now,
	}
}

// Profiles

func (s *Store) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByEmail(_ context.Context, email string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrProfileNotFound
}

func (s *Store) CreateProfile(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, upd app.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	if upd.PositionType != nil {
		p.PositionType = *upd.PositionType
	}
	if upd.CurrentScenarioIndex != nil {
		p.CurrentScenarioIndex = *upd.CurrentScenarioIndex
	}
	if upd.InterviewStartedAt != nil {
		p.InterviewStartedAt = upd.InterviewStartedAt
	}
	if upd.CompletedAt != nil {
		p.CompletedAt = upd.CompletedAt
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.PhoneNumber != nil {
		p.PhoneNumber = *upd.PhoneNumber
	}
	if upd.Country != nil {
		p.Country = *upd.Country
	}
	if upd.ReferredBy != nil {
		p.ReferredBy = *upd.ReferredBy
	}
	if upd.PasswordHash != nil {
		p.PasswordHash = *upd.PasswordHash
	}
	s.profiles[id] = p
	return nil
}

func (s *Store) ListApplicants(_ context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.Role == domain.RoleApplicant {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Scenarios

func (s *Store) ListScenarios(_ context.Context) ([]domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenarioListLocked(false), nil
}

// LoadActiveScenarios feeds the scenario caches.
func (s *Store) LoadActiveScenarios(_ context.Context) ([]domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenarioListLocked(true), nil
}

func (s *Store) scenarioListLocked(activeOnly bool) []domain.Scenario {
	out := make([]domain.Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		if activeOnly && !sc.Active {
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) GetScenario(_ context.Context, id int64) (domain.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}
	return sc, nil
}

func (s *Store) CreateScenario(_ context.Context, sc domain.Scenario) (domain.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = s.nextScenarioID
	s.nextScenarioID++
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.clock()
	}
	s.scenarios[sc.ID] = sc
	return sc, nil
}

func (s *Store) UpdateScenario(_ context.Context, sc domain.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[sc.ID]; !ok {
		return domain.ErrScenarioNotFound
	}
	s.scenarios[sc.ID] = sc
	return nil
}

func (s *Store) DeleteScenario(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[id]; !ok {
		return domain.ErrScenarioNotFound
	}
	for _, r := range s.recordings {
		if r.ScenarioID == id {
			return domain.ErrScenarioInUse
		}
	}
	for _, t := range s.textResponses {
		if t.ScenarioID == id {
			return domain.ErrScenarioInUse
		}
	}
	delete(s.scenarios, id)
	return nil
}

func (s *Store) SwapDisplayOrder(_ context.Context, aID, bID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, okA := s.scenarios[aID]
	b, okB := s.scenarios[bID]
	if !okA || !okB {
		return domain.ErrScenarioNotFound
	}
	a.DisplayOrder, b.DisplayOrder = b.DisplayOrder, a.DisplayOrder
	s.scenarios[aID] = a
	s.scenarios[bID] = b
	return nil
}

// Responses

func (s *Store) CreateRecording(_ context.Context, r domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[r.ID] = r
	return nil
}

func (s *Store) CreateTextResponse(_ context.Context, t domain.TextResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textResponses[t.ID] = t
	return nil
}

func (s *Store) ListRecordings(_ context.Context, userID string) ([]domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Recording
	for _, r := range s.recordings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sortRecordings(out)
	return out, nil
}

func (s *Store) ListTextResponses(_ context.Context, userID string) ([]domain.TextResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TextResponse
	for _, t := range s.textResponses {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortTextResponses(out)
	return out, nil
}

func (s *Store) ListRecordingsByScenario(_ context.Context, scenarioID int64) ([]domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Recording
	for _, r := range s.recordings {
		if r.ScenarioID == scenarioID {
			out = append(out, r)
		}
	}
	sortRecordings(out)
	return out, nil
}

func (s *Store) ListTextResponsesByScenario(_ context.Context, scenarioID int64) ([]domain.TextResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TextResponse
	for _, t := range s.textResponses {
		if t.ScenarioID == scenarioID {
			out = append(out, t)
		}
	}
	sortTextResponses(out)
	return out, nil
}

func (s *Store) AnsweredScenarioIDs(_ context.Context, userID string) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answered := make(map[int64]bool)
	for _, r := range s.recordings {
		if r.UserID == userID {
			answered[r.ScenarioID] = true
		}
	}
	for _, t := range s.textResponses {
		if t.UserID == userID {
			answered[t.ScenarioID] = true
		}
	}
	return answered, nil
}

// Ratings

func (s *Store) UpsertRating(_ context.Context, r domain.ResponseRating) (domain.ResponseRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.ratings {
		sameTarget := (r.RecordingID != "" && existing.RecordingID == r.RecordingID) ||
			(r.TextResponseID != "" && existing.TextResponseID == r.TextResponseID)
		if sameTarget {
			existing.Rating = r.Rating
			existing.Feedback = r.Feedback
			existing.RatedBy = r.RatedBy
			existing.UpdatedAt = r.UpdatedAt
			s.ratings[id] = existing
			return existing, nil
		}
	}
	s.ratings[r.ID] = r
	return r, nil
}

func (s *Store) RatingForRecording(_ context.Context, recordingID string) (*domain.ResponseRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ratings {
		if r.RecordingID == recordingID {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *Store) RatingForTextResponse(_ context.Context, textResponseID string) (*domain.ResponseRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ratings {
		if r.TextResponseID == textResponseID {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

// Reset tokens

func (s *Store) SaveResetToken(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTokens[token] = resetToken{userID: userID, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.resetTokens[token]
	if !ok {
		return "", domain.ErrResetTokenInvalid
	}
	delete(s.resetTokens, token)
	if s.clock().After(entry.expiresAt) {
		return "", domain.ErrResetTokenInvalid
	}
	return entry.userID, nil
}

func sortRecordings(list []domain.Recording) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func sortTextResponses(list []domain.TextResponse) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
