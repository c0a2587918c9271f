package app

import (
	"context"
	"time"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// ProfileStore persists applicant and staff accounts.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error)
	CreateProfile(ctx context.Context, p domain.Profile) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error
	// ListApplicants returns applicant-role profiles, newest first.
	ListApplicants(ctx context.Context) ([]domain.Profile, error)
}

// ProfileUpdate is a partial profile write; nil fields are left untouched.
type ProfileUpdate struct {
	PositionType         *domain.PositionType
	CurrentScenarioIndex *int
	InterviewStartedAt   *time.Time
	CompletedAt          *time.Time
	FullName             *string
	PhoneNumber          *string
	Country              *string
	ReferredBy           *string
	PasswordHash         *[]byte
}

// ScenarioSource provides the ordered, active-only scenario list the
// assessment flow traverses. Implementations cache; staleness up to the
// cache TTL is acceptable.
type ScenarioSource interface {
	ActiveScenarios(ctx context.Context) ([]domain.Scenario, error)
}

// ScenarioStore is the staff-facing scenario table access.
type ScenarioStore interface {
	ListScenarios(ctx context.Context) ([]domain.Scenario, error)
	GetScenario(ctx context.Context, id int64) (domain.Scenario, error)
	CreateScenario(ctx context.Context, s domain.Scenario) (domain.Scenario, error)
	UpdateScenario(ctx context.Context, s domain.Scenario) error
	// DeleteScenario returns domain.ErrScenarioInUse while any response
	// references the scenario.
	DeleteScenario(ctx context.Context, id int64) error
	SwapDisplayOrder(ctx context.Context, aID, bID int64) error
}

// ResponseStore persists answers.
type ResponseStore interface {
	CreateRecording(ctx context.Context, r domain.Recording) error
	CreateTextResponse(ctx context.Context, t domain.TextResponse) error
	ListRecordings(ctx context.Context, userID string) ([]domain.Recording, error)
	ListTextResponses(ctx context.Context, userID string) ([]domain.TextResponse, error)
	ListRecordingsByScenario(ctx context.Context, scenarioID int64) ([]domain.Recording, error)
	ListTextResponsesByScenario(ctx context.Context, scenarioID int64) ([]domain.TextResponse, error)
	// AnsweredScenarioIDs is the union of scenario ids with a recording or a
	// text response from the user.
	AnsweredScenarioIDs(ctx context.Context, userID string) (map[int64]bool, error)
}

// RatingStore persists staff ratings with at-most-one-per-response semantics.
type RatingStore interface {
	// UpsertRating inserts or overwrites atomically, keyed by whichever of
	// RecordingID / TextResponseID is set.
	UpsertRating(ctx context.Context, r domain.ResponseRating) (domain.ResponseRating, error)
	RatingForRecording(ctx context.Context, recordingID string) (*domain.ResponseRating, error)
	RatingForTextResponse(ctx context.Context, textResponseID string) (*domain.ResponseRating, error)
}

// ObjectStore is the binary storage for recorded audio.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Stat returns domain.ErrObjectNotFound when the key does not resolve.
	Stat(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ResetTokenStore holds short-lived password reset tokens.
type ResetTokenStore interface {
	SaveResetToken(ctx context.Context, token, userID string, ttl time.Duration) error
	// ConsumeResetToken returns the user id and invalidates the token, or
	// domain.ErrResetTokenInvalid.
	ConsumeResetToken(ctx context.Context, token string) (string, error)
}

// CaptureStore tracks live capture sessions, at most one per
// (user, scenario) pair.
type CaptureStore interface {
	GetOrCreate(userID string, scenarioID int64) *CaptureSession
	Get(userID string, scenarioID int64) (*CaptureSession, bool)
	// Delete evicts the session after closing it.
	Delete(userID string, scenarioID int64)
}
