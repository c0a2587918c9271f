package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
	"github.com/n1-ro/recoverpro/internal/infra/memory"
)

type reviewFixture struct {
	store   *memory.Store
	objects *memory.ObjectStore
	svc     *app.ReviewService
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	store := memory.NewStore()
	objects := memory.NewObjectStore()
	return &reviewFixture{
		store:   store,
		objects: objects,
		svc:     app.NewReviewService(store, store, store, objects, testLogger()),
	}
}

func (f *reviewFixture) seedApplicant(t *testing.T, id string, createdAt time.Time) {
	t.Helper()
	err := f.store.CreateProfile(context.Background(), domain.Profile{
		ID:        id,
		Email:     id + "@example.com",
		Role:      domain.RoleApplicant,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("seed applicant: %v", err)
	}
}

func (f *reviewFixture) seedRecording(t *testing.T, id, userID string, scenarioID int64, seconds int, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	key := fmt.Sprintf("%s/recording-%d.webm", userID, createdAt.UnixMilli())
	if err := f.objects.Put(ctx, key, []byte("audio"), "audio/webm"); err != nil {
		t.Fatalf("seed object: %v", err)
	}
	err := f.store.CreateRecording(ctx, domain.Recording{
		ID: id, UserID: userID, ScenarioID: scenarioID,
		StorageKey: key, FileFormat: "webm", ResponseTime: seconds, CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("seed recording: %v", err)
	}
}

func TestSaveRatingOverwritesInPlace(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f.seedApplicant(t, "u1", base)
	f.seedRecording(t, "rec-1", "u1", 1, 20, base)

	first, err := f.svc.SaveRating(ctx, "rec-1", domain.ResponseAudio, 4, "rushed", "admin-1")
	if err != nil {
		t.Fatalf("save rating failed: %v", err)
	}
	second, err := f.svc.SaveRating(ctx, "rec-1", domain.ResponseAudio, 9, "on reflection, strong", "admin-2")
	if err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same rating row, got %s then %s", first.ID, second.ID)
	}
	if second.Rating != 9 || second.RatedBy != "admin-2" {
		t.Fatalf("overwrite not applied: %+v", second)
	}

	stored, err := f.store.RatingForRecording(ctx, "rec-1")
	if err != nil {
		t.Fatalf("rating lookup failed: %v", err)
	}
	if stored == nil || stored.Rating != 9 || stored.Feedback != "on reflection, strong" {
		t.Fatalf("expected single overwritten rating, got %+v", stored)
	}
}

func TestSaveRatingValidatesScore(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)

	for _, score := range []int{0, -3, 11} {
		if _, err := f.svc.SaveRating(ctx, "rec-1", domain.ResponseAudio, score, "", "admin-1"); !errors.Is(err, domain.ErrInvalidRating) {
			t.Fatalf("score %d: expected invalid rating, got %v", score, err)
		}
	}
}

func TestListApplicantsToleratesMissingObjects(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f.seedApplicant(t, "u1", base)
	for i := 0; i < 5; i++ {
		f.seedRecording(t, fmt.Sprintf("rec-%d", i), "u1", int64(i+1), 10, base.Add(time.Duration(i)*time.Minute))
	}

	// One stored file goes missing; the other four stay playable.
	recordings, _ := f.store.ListRecordings(ctx, "u1")
	f.objects.Remove(recordings[2].StorageKey)

	reviews, err := f.svc.ListApplicants(ctx)
	if err != nil {
		t.Fatalf("list applicants failed: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 applicant, got %d", len(reviews))
	}
	playable := 0
	for _, r := range reviews[0].Recordings {
		if r.Exists {
			if r.SignedURL == "" {
				t.Fatalf("existing recording %s has no signed url", r.ID)
			}
			playable++
		}
	}
	if playable != 4 {
		t.Fatalf("expected 4 playable recordings, got %d", playable)
	}
	if len(reviews[0].Recordings) != 5 {
		t.Fatalf("missing object must not drop the record, got %d entries", len(reviews[0].Recordings))
	}
}

func TestListApplicantsOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f.seedApplicant(t, "older", base)
	f.seedApplicant(t, "newer", base.Add(time.Hour))

	reviews, err := f.svc.ListApplicants(ctx)
	if err != nil {
		t.Fatalf("list applicants failed: %v", err)
	}
	if len(reviews) != 2 || reviews[0].Profile.ID != "newer" {
		t.Fatalf("expected newest applicant first, got %+v", reviews)
	}
}

func TestScenarioResponsesJoinsBothKinds(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f.seedApplicant(t, "u1", base)
	f.seedApplicant(t, "u2", base)
	f.seedRecording(t, "rec-1", "u1", 7, 15, base)
	err := f.store.CreateTextResponse(ctx, domain.TextResponse{
		ID: "txt-1", UserID: "u2", ScenarioID: 7,
		ResponseText: "written answer", ResponseTime: 40, CreatedAt: base.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("seed text: %v", err)
	}

	out, err := f.svc.ScenarioResponses(ctx, 7, app.SortNewest)
	if err != nil {
		t.Fatalf("scenario responses failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(out))
	}
	if out[0].Kind != domain.ResponseText || out[0].ApplicantEmail != "u2@example.com" {
		t.Fatalf("expected newest (text) first with email, got %+v", out[0])
	}
	if out[1].Kind != domain.ResponseAudio || !out[1].Exists || out[1].SignedURL == "" {
		t.Fatalf("expected playable audio entry, got %+v", out[1])
	}
}

func TestSortResponses(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	rated := func(score int) *domain.ResponseRating {
		return &domain.ResponseRating{Rating: score}
	}
	build := func() []domain.ScenarioResponse {
		return []domain.ScenarioResponse{
			{ID: "a", ResponseTime: 30, CreatedAt: base, Rating: rated(7)},
			{ID: "b", ResponseTime: 0, CreatedAt: base.Add(time.Minute)},
			{ID: "c", ResponseTime: 5, CreatedAt: base.Add(2 * time.Minute), Rating: rated(2)},
		}
	}

	cases := []struct {
		order app.SortOrder
		want  []string
	}{
		{app.SortNewest, []string{"c", "b", "a"}},
		{app.SortOldest, []string{"a", "b", "c"}},
		// Unset time counts as 9999 for fastest, 0 for slowest.
		{app.SortFastest, []string{"c", "a", "b"}},
		{app.SortSlowest, []string{"a", "c", "b"}},
		// Unrated counts as 0 for highest, 10 for lowest.
		{app.SortHighest, []string{"a", "c", "b"}},
		{app.SortLowest, []string{"c", "a", "b"}},
	}
	for _, tc := range cases {
		list := build()
		app.SortResponses(list, tc.order)
		for i, want := range tc.want {
			if list[i].ID != want {
				t.Fatalf("%s: expected order %v, got %s at %d", tc.order, tc.want, list[i].ID, i)
			}
		}
	}
}
