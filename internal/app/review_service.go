package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// SignedURLTTL is how long review playback links stay valid.
const SignedURLTTL = time.Hour

// SortOrder selects how the per-scenario review panel is ordered.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortFastest SortOrder = "fastest"
	SortSlowest SortOrder = "slowest"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"
)

// ReviewService assembles the staff views: per applicant or per scenario,
// every response joined with at most one rating and, for audio, a
// time-limited signed URL. Resolution is best effort per record; one
// missing file never aborts a batch, and nothing is retried.
type ReviewService struct {
	profiles  ProfileStore
	responses ResponseStore
	ratings   RatingStore
	objects   ObjectStore
	signTTL   time.Duration
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

func NewReviewService(profiles ProfileStore, responses ResponseStore, ratings RatingStore, objects ObjectStore, log *slog.Logger) *ReviewService {
	return &ReviewService{
		profiles:  profiles,
		responses: responses,
		ratings:   ratings,
		objects:   objects,
		signTTL:   SignedURLTTL,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		log:       log,
	}
}

// ListApplicants fans out per applicant: recordings, text responses,
// ratings, signed URLs.
func (s *ReviewService) ListApplicants(ctx context.Context) ([]domain.ApplicantReview, error) {
	profiles, err := s.profiles.ListApplicants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	reviews := make([]domain.ApplicantReview, 0, len(profiles))
	for _, p := range profiles {
		review := domain.ApplicantReview{Profile: p}

		recordings, err := s.responses.ListRecordings(ctx, p.ID)
		if err != nil {
			s.log.Warn("recordings unavailable", "applicant", p.Email, "error", err)
		}
		for _, r := range recordings {
			review.Recordings = append(review.Recordings, s.resolveRecording(ctx, r))
		}

		texts, err := s.responses.ListTextResponses(ctx, p.ID)
		if err != nil {
			s.log.Warn("text responses unavailable", "applicant", p.Email, "error", err)
		}
		for _, t := range texts {
			review.TextResponses = append(review.TextResponses, domain.ReviewedTextResponse{
				TextResponse: t,
				Rating:       s.textRating(ctx, t.ID),
			})
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// ScenarioResponses gathers every answer to one scenario, joined the same
// way, sorted per order.
func (s *ReviewService) ScenarioResponses(ctx context.Context, scenarioID int64, order SortOrder) ([]domain.ScenarioResponse, error) {
	recordings, err := s.responses.ListRecordingsByScenario(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	texts, err := s.responses.ListTextResponsesByScenario(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("list text responses: %w", err)
	}

	emails := map[string]string{}
	out := make([]domain.ScenarioResponse, 0, len(recordings)+len(texts))
	for _, r := range recordings {
		resolved := s.resolveRecording(ctx, r)
		out = append(out, domain.ScenarioResponse{
			Kind:           domain.ResponseAudio,
			ID:             r.ID,
			ApplicantID:    r.UserID,
			ApplicantEmail: s.email(ctx, emails, r.UserID),
			ResponseTime:   r.ResponseTime,
			CreatedAt:      r.CreatedAt,
			SignedURL:      resolved.SignedURL,
			Exists:         resolved.Exists,
			Rating:         resolved.Rating,
		})
	}
	for _, t := range texts {
		out = append(out, domain.ScenarioResponse{
			Kind:           domain.ResponseText,
			ID:             t.ID,
			ApplicantID:    t.UserID,
			ApplicantEmail: s.email(ctx, emails, t.UserID),
			ResponseTime:   t.ResponseTime,
			CreatedAt:      t.CreatedAt,
			Exists:         true,
			Text:           t.ResponseText,
			Rating:         s.textRating(ctx, t.ID),
		})
	}
	SortResponses(out, order)
	return out, nil
}

// SaveRating upserts one staff rating atomically, keyed by the response id.
// A second save overwrites score and feedback in place.
func (s *ReviewService) SaveRating(ctx context.Context, responseID string, kind domain.ResponseType, score int, feedback, raterID string) (domain.ResponseRating, error) {
	if score < 1 || score > 10 {
		return domain.ResponseRating{}, domain.ErrInvalidRating
	}
	now := s.now()
	rating := domain.ResponseRating{
		ID:        s.newID(),
		Rating:    score,
		Feedback:  feedback,
		RatedBy:   raterID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch kind {
	case domain.ResponseAudio:
		rating.RecordingID = responseID
	case domain.ResponseText:
		rating.TextResponseID = responseID
	default:
		return domain.ResponseRating{}, domain.ErrResponseNotFound
	}
	saved, err := s.ratings.UpsertRating(ctx, rating)
	if err != nil {
		return domain.ResponseRating{}, fmt.Errorf("save rating: %w", err)
	}
	return saved, nil
}

// SortResponses orders in place. Unset response times sort as 9999 when
// looking for the fastest and 0 for the slowest; unrated responses score 0
// for highest-first and 10 for lowest-first. Ties keep input order.
func SortResponses(list []domain.ScenarioResponse, order SortOrder) {
	switch order {
	case SortOldest:
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	case SortFastest:
		sort.SliceStable(list, func(i, j int) bool {
			return timeKey(list[i].ResponseTime, 9999) < timeKey(list[j].ResponseTime, 9999)
		})
	case SortSlowest:
		sort.SliceStable(list, func(i, j int) bool {
			return timeKey(list[i].ResponseTime, 0) > timeKey(list[j].ResponseTime, 0)
		})
	case SortHighest:
		sort.SliceStable(list, func(i, j int) bool {
			return ratingKey(list[i].Rating, 0) > ratingKey(list[j].Rating, 0)
		})
	case SortLowest:
		sort.SliceStable(list, func(i, j int) bool {
			return ratingKey(list[i].Rating, 10) < ratingKey(list[j].Rating, 10)
		})
	default: // SortNewest
		sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	}
}

func timeKey(seconds, unset int) int {
	if seconds <= 0 {
		return unset
	}
	return seconds
}

func ratingKey(r *domain.ResponseRating, unset int) int {
	if r == nil {
		return unset
	}
	return r.Rating
}

// resolveRecording attaches the rating and a playable URL. Any failure
// marks the record unavailable and moves on.
func (s *ReviewService) resolveRecording(ctx context.Context, r domain.Recording) domain.ReviewedRecording {
	out := domain.ReviewedRecording{Recording: r}

	rating, err := s.ratings.RatingForRecording(ctx, r.ID)
	if err != nil {
		s.log.Warn("rating lookup failed", "recording", r.ID, "error", err)
	} else {
		out.Rating = rating
	}

	if err := s.objects.Stat(ctx, r.StorageKey); err != nil {
		s.log.Warn("recording object missing", "key", r.StorageKey, "error", err)
		return out
	}
	url, err := s.objects.PresignGet(ctx, r.StorageKey, s.signTTL)
	if err != nil {
		s.log.Warn("signing recording url failed", "key", r.StorageKey, "error", err)
		return out
	}
	out.SignedURL = url
	out.Exists = true
	return out
}

func (s *ReviewService) textRating(ctx context.Context, textResponseID string) *domain.ResponseRating {
	rating, err := s.ratings.RatingForTextResponse(ctx, textResponseID)
	if err != nil {
		s.log.Warn("rating lookup failed", "textResponse", textResponseID, "error", err)
		return nil
	}
	return rating
}

func (s *ReviewService) email(ctx context.Context, cache map[string]string, userID string) string {
	if email, ok := cache[userID]; ok {
		return email
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.log.Warn("profile lookup failed", "user", userID, "error", err)
		cache[userID] = ""
		return ""
	}
	cache[userID] = profile.Email
	return profile.Email
}
