package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// orderGap leaves room between display_order values so future inserts do
// not require renumbering.
const orderGap = 10

// MoveDirection shifts a scenario one slot in the applicant sequence.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// ScenarioService is the staff-side scenario lifecycle: create, edit,
// activate, reorder. Deletion is blocked while responses reference the
// scenario; the active flag is the way to retire a question.
type ScenarioService struct {
	store      ScenarioStore
	invalidate func(ctx context.Context)
	now        func() time.Time
}

func NewScenarioService(store ScenarioStore) *ScenarioService {
	return &ScenarioService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// InvalidateWith registers a hook run after every successful write, so the
// applicant-facing scenario cache drops its snapshot instead of serving a
// stale sequence until the TTL expires.
func (s *ScenarioService) InvalidateWith(fn func(ctx context.Context)) {
	s.invalidate = fn
}

func (s *ScenarioService) flush(ctx context.Context) {
	if s.invalidate != nil {
		s.invalidate(ctx)
	}
}

func (s *ScenarioService) List(ctx context.Context) ([]domain.Scenario, error) {
	return s.store.ListScenarios(ctx)
}

// Create appends a scenario to the end of the sequence.
func (s *ScenarioService) Create(ctx context.Context, title, description string, responseType domain.ResponseType, active bool) (domain.Scenario, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return domain.Scenario{}, domain.ErrInvalidScenario
	}
	if responseType != domain.ResponseAudio && responseType != domain.ResponseText {
		responseType = domain.ResponseAudio
	}
	existing, err := s.store.ListScenarios(ctx)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("list scenarios: %w", err)
	}
	highest := 0
	for _, sc := range existing {
		if sc.DisplayOrder > highest {
			highest = sc.DisplayOrder
		}
	}
	created, err := s.store.CreateScenario(ctx, domain.Scenario{
		Title:        title,
		Description:  description,
		ResponseType: responseType,
		DisplayOrder: highest + orderGap,
		Active:       active,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return domain.Scenario{}, err
	}
	s.flush(ctx)
	return created, nil
}

// Update edits title, description and active. The response type is fixed at
// creation; answers of the other kind would orphan existing responses.
func (s *ScenarioService) Update(ctx context.Context, id int64, title, description string, active bool) (domain.Scenario, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return domain.Scenario{}, domain.ErrInvalidScenario
	}
	scenario, err := s.store.GetScenario(ctx, id)
	if err != nil {
		return domain.Scenario{}, err
	}
	scenario.Title = title
	scenario.Description = description
	scenario.Active = active
	if err := s.store.UpdateScenario(ctx, scenario); err != nil {
		return domain.Scenario{}, fmt.Errorf("update scenario: %w", err)
	}
	s.flush(ctx)
	return scenario, nil
}

func (s *ScenarioService) ToggleActive(ctx context.Context, id int64) (domain.Scenario, error) {
	scenario, err := s.store.GetScenario(ctx, id)
	if err != nil {
		return domain.Scenario{}, err
	}
	scenario.Active = !scenario.Active
	if err := s.store.UpdateScenario(ctx, scenario); err != nil {
		return domain.Scenario{}, fmt.Errorf("toggle scenario: %w", err)
	}
	s.flush(ctx)
	return scenario, nil
}

// Move swaps the scenario's display_order with its neighbor in the given
// direction. Moving past either end is a no-op.
func (s *ScenarioService) Move(ctx context.Context, id int64, direction MoveDirection) error {
	scenarios, err := s.store.ListScenarios(ctx)
	if err != nil {
		return fmt.Errorf("list scenarios: %w", err)
	}
	pos := -1
	for i, sc := range scenarios {
		if sc.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return domain.ErrScenarioNotFound
	}
	neighbor := pos - 1
	if direction == MoveDown {
		neighbor = pos + 1
	}
	if neighbor < 0 || neighbor >= len(scenarios) {
		return nil
	}
	if err := s.store.SwapDisplayOrder(ctx, scenarios[pos].ID, scenarios[neighbor].ID); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}

func (s *ScenarioService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteScenario(ctx, id); err != nil {
		return err
	}
	s.flush(ctx)
	return nil
}
