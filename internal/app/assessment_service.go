package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/n1-ro/recoverpro/internal/domain"
)

const (
	// MaxAudioBytes is the upload ceiling for audio answers.
	MaxAudioBytes = 50 << 20
	// defaultUploadSeconds is the response_time recorded for answers sourced
	// from a local file instead of a live recording.
	defaultUploadSeconds = 30
)

// AssessmentService drives an applicant through the ordered scenario list:
// begin, per-question capture and submit, completion, contact details.
// Progress is persisted through the profile cursor so a reload resumes at
// the correct position.
type AssessmentService struct {
	profiles  ProfileStore
	scenarios ScenarioSource
	responses ResponseStore
	objects   ObjectStore
	captures  CaptureStore
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

func NewAssessmentService(profiles ProfileStore, scenarios ScenarioSource, responses ResponseStore, objects ObjectStore, captures CaptureStore, log *slog.Logger) *AssessmentService {
	return &AssessmentService{
		profiles:  profiles,
		scenarios: scenarios,
		responses: responses,
		objects:   objects,
		captures:  captures,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		log:       log,
	}
}

// NewAssessmentServiceWithClock is test-only for deterministic timestamps.
func NewAssessmentServiceWithClock(profiles ProfileStore, scenarios ScenarioSource, responses ResponseStore, objects ObjectStore, captures CaptureStore, log *slog.Logger, now func() time.Time) *AssessmentService {
	s := NewAssessmentService(profiles, scenarios, responses, objects, captures, log)
	s.now = now
	return s
}

// ProgressView is everything the applicant UI needs to resume.
type ProgressView struct {
	State        domain.FlowState      `json:"state"`
	Cursor       int                   `json:"cursor"`
	Scenarios    []domain.Scenario     `json:"scenarios"`
	AnsweredIDs  []int64               `json:"answeredIds"`
	PositionType domain.PositionType   `json:"positionType,omitempty"`
	Contact      domain.ContactDetails `json:"contact"`
}

// SubmitResult reports where the flow landed after a submission.
type SubmitResult struct {
	NextIndex int  `json:"nextIndex"`
	Completed bool `json:"completed"`
}

// AudioSubmission is an audio answer ready for validation and upload.
type AudioSubmission struct {
	Data        []byte
	ContentType string
	FileFormat  string
	// ResponseTime in seconds; zero means "not measured" and falls back to
	// the upload default.
	ResponseTime int
}

// Progress derives the applicant's flow state from the stored profile and
// the set of scenarios already answered.
func (s *AssessmentService) Progress(ctx context.Context, userID string) (ProgressView, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return ProgressView{}, err
	}
	scenarios, err := s.scenarios.ActiveScenarios(ctx)
	if err != nil {
		return ProgressView{}, fmt.Errorf("load scenarios: %w", err)
	}
	answered, err := s.responses.AnsweredScenarioIDs(ctx, userID)
	if err != nil {
		return ProgressView{}, fmt.Errorf("load answered scenarios: %w", err)
	}

	view := ProgressView{
		Cursor:       profile.CurrentScenarioIndex,
		Scenarios:    scenarios,
		AnsweredIDs:  sortedIDs(answered),
		PositionType: profile.PositionType,
		Contact: domain.ContactDetails{
			FullName:    profile.FullName,
			PhoneNumber: profile.PhoneNumber,
			Country:     profile.Country,
			ReferredBy:  profile.ReferredBy,
		},
	}
	switch {
	case profile.CompletedAt != nil:
		view.State = domain.StateContactForm
	case profile.InterviewStartedAt != nil:
		view.State = domain.StateInProgress
	default:
		view.State = domain.StatePositionPending
	}
	return view, nil
}

// Begin starts the assessment. interview_started_at is set exactly once; a
// repeat call leaves the timestamp and cursor untouched.
func (s *AssessmentService) Begin(ctx context.Context, userID string, position domain.PositionType) error {
	if position != domain.PositionVoice && position != domain.PositionNonVoice {
		return domain.ErrPositionRequired
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.CompletedAt != nil {
		return domain.ErrAlreadyCompleted
	}
	if profile.InterviewStartedAt != nil {
		return nil
	}
	started := s.now()
	cursor := 0
	return s.profiles.UpdateProfile(ctx, userID, ProfileUpdate{
		InterviewStartedAt:   &started,
		CurrentScenarioIndex: &cursor,
		PositionType:         &position,
	})
}

// Navigate validates a move to target and returns the scenario there.
// Backward moves and revisits of answered scenarios are always allowed;
// forward movement is a monotonic unlock gated on the scenario at the
// cursor having a persisted response. The stored cursor (the unanswered
// frontier) is never moved by navigation.
func (s *AssessmentService) Navigate(ctx context.Context, userID string, target int) (domain.Scenario, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.Scenario{}, err
	}
	scenarios, err := s.scenarios.ActiveScenarios(ctx)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("load scenarios: %w", err)
	}
	if target < 0 || target >= len(scenarios) {
		return domain.Scenario{}, domain.ErrScenarioNotFound
	}
	if target <= profile.CurrentScenarioIndex {
		return scenarios[target], nil
	}
	answered, err := s.responses.AnsweredScenarioIDs(ctx, userID)
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("load answered scenarios: %w", err)
	}
	if answered[scenarios[target].ID] {
		return scenarios[target], nil
	}
	cursor := profile.CurrentScenarioIndex
	if target == cursor+1 && cursor < len(scenarios) && answered[scenarios[cursor].ID] {
		return scenarios[target], nil
	}
	return domain.Scenario{}, domain.ErrStepLocked
}

// SubmitText stores a written answer for the scenario at index and advances
// the cursor. elapsed is the client-reported question time in seconds; a
// live capture session's server-side timer takes precedence when present.
func (s *AssessmentService) SubmitText(ctx context.Context, userID string, index int, text string, elapsed int) (SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SubmitResult{}, domain.ErrEmptyResponse
	}
	profile, scenarios, stored, err := s.frontier(ctx, userID, index)
	if err != nil {
		return SubmitResult{}, err
	}
	scenario := scenarios[index]
	if stored {
		return s.advance(ctx, profile, len(scenarios), scenario.ID)
	}

	seconds := elapsed
	if session, ok := s.captures.Get(userID, scenario.ID); ok {
		seconds = session.QuestionSeconds()
	}
	if seconds < 1 {
		seconds = 1
	}

	err = s.responses.CreateTextResponse(ctx, domain.TextResponse{
		ID:           s.newID(),
		UserID:       userID,
		ScenarioID:   scenario.ID,
		ResponseText: text,
		ResponseTime: seconds,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("save text response: %w", err)
	}
	return s.advance(ctx, profile, len(scenarios), scenario.ID)
}

// SubmitAudio validates, uploads and stores an audio answer, then advances.
// Validation failures never reach the network; upload or insert failures
// leave the cursor untouched so the applicant can retry without
// re-recording.
func (s *AssessmentService) SubmitAudio(ctx context.Context, userID string, index int, sub AudioSubmission) (SubmitResult, error) {
	if err := ValidateAudio(sub.ContentType, int64(len(sub.Data))); err != nil {
		return SubmitResult{}, err
	}
	profile, scenarios, stored, err := s.frontier(ctx, userID, index)
	if err != nil {
		return SubmitResult{}, err
	}
	scenario := scenarios[index]
	if stored {
		return s.advance(ctx, profile, len(scenarios), scenario.ID)
	}

	format := sub.FileFormat
	if format == "" {
		format = "webm"
	}
	seconds := sub.ResponseTime
	if seconds <= 0 {
		seconds = defaultUploadSeconds
	}
	key := fmt.Sprintf("%s/recording-%d.%s", userID, s.now().UnixMilli(), format)

	if err := s.objects.Put(ctx, key, sub.Data, sub.ContentType); err != nil {
		s.log.Error("audio upload failed", "user", userID, "scenario", scenario.ID, "error", err)
		return SubmitResult{}, fmt.Errorf("upload recording: %w", err)
	}
	err = s.responses.CreateRecording(ctx, domain.Recording{
		ID:           s.newID(),
		UserID:       userID,
		ScenarioID:   scenario.ID,
		StorageKey:   key,
		FileFormat:   format,
		ResponseTime: seconds,
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.log.Error("recording insert failed", "user", userID, "scenario", scenario.ID, "error", err)
		return SubmitResult{}, fmt.Errorf("save recording: %w", err)
	}
	return s.advance(ctx, profile, len(scenarios), scenario.ID)
}

// SubmitCapturedAudio submits whatever the live capture session for the
// scenario at index currently holds. On failure the session returns to
// Captured so retry needs no re-recording.
func (s *AssessmentService) SubmitCapturedAudio(ctx context.Context, userID string, index int) (SubmitResult, error) {
	scenarios, err := s.scenarios.ActiveScenarios(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load scenarios: %w", err)
	}
	if index < 0 || index >= len(scenarios) {
		return SubmitResult{}, domain.ErrScenarioNotFound
	}
	session, ok := s.captures.Get(userID, scenarios[index].ID)
	if !ok {
		return SubmitResult{}, domain.ErrNothingCaptured
	}
	capture, err := session.BeginSubmit()
	if err != nil {
		return SubmitResult{}, err
	}
	seconds := capture.Duration
	if capture.Uploaded {
		seconds = 0 // SubmitAudio applies the upload default
	}
	res, err := s.SubmitAudio(ctx, userID, index, AudioSubmission{
		Data:         capture.Data,
		ContentType:  capture.ContentType,
		FileFormat:   capture.FileFormat,
		ResponseTime: seconds,
	})
	session.EndSubmit(err == nil)
	if err == nil {
		s.captures.Delete(userID, scenarios[index].ID)
	}
	return res, err
}

// SubmitContactDetails records the post-assessment form. It is available
// only once the assessment is complete and stays editable afterwards.
func (s *AssessmentService) SubmitContactDetails(ctx context.Context, userID string, form domain.ContactDetails) error {
	if strings.TrimSpace(form.FullName) == "" ||
		strings.TrimSpace(form.PhoneNumber) == "" ||
		strings.TrimSpace(form.Country) == "" {
		return domain.ErrIncompleteContact
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.CompletedAt == nil {
		return domain.ErrNotCompleted
	}
	return s.profiles.UpdateProfile(ctx, userID, ProfileUpdate{
		FullName:    &form.FullName,
		PhoneNumber: &form.PhoneNumber,
		Country:     &form.Country,
		ReferredBy:  &form.ReferredBy,
	})
}

// ValidateAudio gates audio submissions before any network call.
func ValidateAudio(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "audio/") {
		return domain.ErrNotAudio
	}
	if size == 0 {
		return domain.ErrEmptyResponse
	}
	if size > MaxAudioBytes {
		return domain.ErrFileTooLarge
	}
	return nil
}

// frontier loads the profile and scenario list and checks that index is the
// next unanswered position. Submissions are strictly sequential: answered
// scenarios reject duplicates, anything else off the cursor is locked.
// One exception: an answered scenario sitting at the cursor means a prior
// submission stored its response row but failed the cursor update. stored
// reports that case so the caller skips the insert and only repairs the
// cursor; a retry must always be able to move on without duplicating the
// answer.
func (s *AssessmentService) frontier(ctx context.Context, userID string, index int) (profile domain.Profile, scenarios []domain.Scenario, stored bool, err error) {
	profile, err = s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, nil, false, err
	}
	if profile.InterviewStartedAt == nil {
		return domain.Profile{}, nil, false, domain.ErrPositionRequired
	}
	scenarios, err = s.scenarios.ActiveScenarios(ctx)
	if err != nil {
		return domain.Profile{}, nil, false, fmt.Errorf("load scenarios: %w", err)
	}
	if index < 0 || index >= len(scenarios) {
		return domain.Profile{}, nil, false, domain.ErrScenarioNotFound
	}
	answered, err := s.responses.AnsweredScenarioIDs(ctx, userID)
	if err != nil {
		return domain.Profile{}, nil, false, fmt.Errorf("load answered scenarios: %w", err)
	}
	if answered[scenarios[index].ID] {
		if index == profile.CurrentScenarioIndex {
			return profile, scenarios, true, nil
		}
		return domain.Profile{}, nil, false, domain.ErrAlreadyAnswered
	}
	if index != profile.CurrentScenarioIndex {
		return domain.Profile{}, nil, false, domain.ErrStepLocked
	}
	return profile, scenarios, false, nil
}

// advance moves the cursor past the just-answered scenario. The last
// submission persists the cursor as the scenario count (a sentinel meaning
// "all done") and sets completed_at exactly once.
func (s *AssessmentService) advance(ctx context.Context, profile domain.Profile, total int, answeredScenarioID int64) (SubmitResult, error) {
	next := profile.CurrentScenarioIndex + 1
	completed := next >= total
	if completed {
		next = total
	}
	upd := ProfileUpdate{CurrentScenarioIndex: &next}
	if completed && profile.CompletedAt == nil {
		done := s.now()
		upd.CompletedAt = &done
	}
	if err := s.profiles.UpdateProfile(ctx, profile.ID, upd); err != nil {
		return SubmitResult{}, fmt.Errorf("advance cursor: %w", err)
	}
	// The question timer stops with the submission; drop any session left
	// over for the answered scenario.
	s.captures.Delete(profile.ID, answeredScenarioID)
	return SubmitResult{NextIndex: next, Completed: completed}, nil
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
