package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/n1-ro/recoverpro/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Unknown
// errors become a 500 with a generic body so internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrScenarioNotFound),
		errors.Is(err, domain.ErrResponseNotFound),
		errors.Is(err, domain.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrScenarioInUse),
		errors.Is(err, domain.ErrRecordingInProgress),
		errors.Is(err, domain.ErrCaptureBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStepLocked),
		errors.Is(err, domain.ErrPositionRequired),
		errors.Is(err, domain.ErrNotCompleted):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrResetTokenInvalid):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrEmptyResponse),
		errors.Is(err, domain.ErrNotAudio),
		errors.Is(err, domain.ErrIncompleteContact),
		errors.Is(err, domain.ErrInvalidScenario),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrNotRecording),
		errors.Is(err, domain.ErrNothingCaptured):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
