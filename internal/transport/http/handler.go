package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
)

// API is the HTTP surface of the portal: applicant assessment flow, the
// live recording channel, staff review and scenario admin, and auth.
type API struct {
	auth       *Authenticator
	authSvc    *app.AuthService
	assessment *app.AssessmentService
	review     *app.ReviewService
	scenarios  *app.ScenarioService
	captures   *CaptureHandler
	log        *slog.Logger
}

func NewAPI(auth *Authenticator, authSvc *app.AuthService, assessment *app.AssessmentService,
	review *app.ReviewService, scenarios *app.ScenarioService, captures *CaptureHandler, log *slog.Logger) *API {
	return &API{
		auth:       auth,
		authSvc:    authSvc,
		assessment: assessment,
		review:     review,
		scenarios:  scenarios,
		captures:   captures,
		log:        log,
	}
}

// Routes builds the full route table. Applicant routes need a valid
// token; admin routes additionally need the admin role claim.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	mux.HandleFunc("POST /api/auth/reset-request", a.handleResetRequest)
	mux.HandleFunc("POST /api/auth/reset", a.handleReset)

	authed := func(h http.HandlerFunc) http.Handler { return RequireAuth(h) }
	mux.Handle("GET /api/assessment", authed(a.handleProgress))
	mux.Handle("POST /api/assessment/begin", authed(a.handleBegin))
	mux.Handle("GET /api/assessment/scenario/{index}", authed(a.handleNavigate))
	mux.Handle("POST /api/assessment/scenario/{index}/text", authed(a.handleSubmitText))
	mux.Handle("POST /api/assessment/scenario/{index}/audio", authed(a.handleSubmitAudio))
	mux.Handle("POST /api/assessment/scenario/{index}/capture", authed(a.handleSubmitCapture))
	mux.Handle("POST /api/assessment/contact", authed(a.handleContact))
	mux.Handle("GET /api/assessment/record", authed(a.captures.ServeWS))

	admin := func(h http.HandlerFunc) http.Handler { return RequireAdmin(h) }
	mux.Handle("GET /api/admin/applicants", admin(a.handleListApplicants))
	mux.Handle("GET /api/admin/scenarios/{id}/responses", admin(a.handleScenarioResponses))
	mux.Handle("POST /api/admin/ratings", admin(a.handleSaveRating))
	mux.Handle("GET /api/admin/scenarios", admin(a.handleListScenarios))
	mux.Handle("POST /api/admin/scenarios", admin(a.handleCreateScenario))
	mux.Handle("PUT /api/admin/scenarios/{id}", admin(a.handleUpdateScenario))
	mux.Handle("POST /api/admin/scenarios/{id}/toggle", admin(a.handleToggleScenario))
	mux.Handle("POST /api/admin/scenarios/{id}/move", admin(a.handleMoveScenario))
	mux.Handle("DELETE /api/admin/scenarios/{id}", admin(a.handleDeleteScenario))

	return a.auth.WithAuth(mux)
}

// Auth

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "email and a password of at least 8 characters are required")
		return
	}
	result, err := a.authSvc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	// Token delivery is out of band; the response is identical whether or
	// not the address is registered.
	token, err := a.authSvc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		a.log.Error("reset request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if token != "" {
		// No mailer is wired in; the token is only observable here.
		a.log.Info("password reset token issued", "email", req.Email, "token", token)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if err := a.authSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Assessment flow

func (a *API) handleProgress(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	view, err := a.assessment.Progress(r.Context(), claims.UID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleBegin(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	var req struct {
		PositionType domain.PositionType `json:"positionType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := a.assessment.Begin(r.Context(), claims.UID, req.PositionType); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (a *API) handleNavigate(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	scenario, err := a.assessment.Navigate(r.Context(), claims.UID, index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (a *API) handleSubmitText(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		Text    string `json:"text"`
		Elapsed int    `json:"elapsed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := a.assessment.SubmitText(r.Context(), claims.UID, index, req.Text, req.Elapsed)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSubmitAudio accepts a raw audio upload. The body size cap is one
// byte above the limit so oversized uploads surface as a domain error
// instead of a connection reset.
func (a *API) handleSubmitAudio(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	contentType := r.Header.Get("Content-Type")
	if err := app.ValidateAudio(contentType, r.ContentLength); err != nil {
		writeDomainError(w, err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, app.MaxAudioBytes+1)
	data, err := io.ReadAll(body)
	if err != nil {
		writeDomainError(w, domain.ErrFileTooLarge)
		return
	}
	result, err := a.assessment.SubmitAudio(r.Context(), claims.UID, index, app.AudioSubmission{
		Data:        data,
		ContentType: contentType,
		FileFormat:  fileFormat(contentType),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSubmitCapture(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	result, err := a.assessment.SubmitCapturedAudio(r.Context(), claims.UID, index)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleContact(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	var form domain.ContactDetails
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := a.assessment.SubmitContactDetails(r.Context(), claims.UID, form); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

// Review

func (a *API) handleListApplicants(w http.ResponseWriter, r *http.Request) {
	reviews, err := a.review.ListApplicants(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (a *API) handleScenarioResponses(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	order := app.SortOrder(r.URL.Query().Get("sort"))
	if order == "" {
		order = app.SortNewest
	}
	responses, err := a.review.ScenarioResponses(r.Context(), id, order)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (a *API) handleSaveRating(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	var req struct {
		ResponseID string              `json:"responseId"`
		Kind       domain.ResponseType `json:"kind"`
		Rating     int                 `json:"rating"`
		Feedback   string              `json:"feedback"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	rating, err := a.review.SaveRating(r.Context(), req.ResponseID, req.Kind, req.Rating, req.Feedback, claims.UID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// Scenario admin

type scenarioRequest struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	ResponseType domain.ResponseType `json:"responseType"`
	Active       *bool               `json:"active"`
}

func (a *API) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := a.scenarios.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenarios)
}

func (a *API) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	scenario, err := a.scenarios.Create(r.Context(), req.Title, req.Description, req.ResponseType, active)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scenario)
}

func (a *API) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req scenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	scenario, err := a.scenarios.Update(r.Context(), id, req.Title, req.Description, active)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (a *API) handleToggleScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	scenario, err := a.scenarios.ToggleActive(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (a *API) handleMoveScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Direction app.MoveDirection `json:"direction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Direction != app.MoveUp && req.Direction != app.MoveDown {
		writeError(w, http.StatusBadRequest, "direction must be up or down")
		return
	}
	if err := a.scenarios.Move(r.Context(), id, req.Direction); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (a *API) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := a.scenarios.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

// fileFormat derives a storage extension from the upload content type.
func fileFormat(contentType string) string {
	sub := strings.TrimPrefix(contentType, "audio/")
	if i := strings.IndexByte(sub, ';'); i >= 0 {
		sub = sub[:i]
	}
	sub = strings.TrimSpace(sub)
	switch sub {
	case "mpeg":
		return "mp3"
	case "", "webm":
		return "webm"
	default:
		return sub
	}
}
