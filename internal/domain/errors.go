package domain

import "errors"

var (
	// ErrProfileNotFound is returned when no account exists for an id or email.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrScenarioNotFound indicates an unknown scenario id or index.
	ErrScenarioNotFound = errors.New("scenario not found")
	// ErrResponseNotFound indicates an unknown recording or text response id.
	ErrResponseNotFound = errors.New("response not found")
	// ErrObjectNotFound indicates a storage key that no longer resolves.
	ErrObjectNotFound = errors.New("stored object not found")

	// ErrEmailTaken is returned on registration with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrResetTokenInvalid is returned for unknown or expired reset tokens.
	ErrResetTokenInvalid = errors.New("password reset token invalid or expired")

	// ErrPositionRequired is returned when the assessment is begun without a
	// position type.
	ErrPositionRequired = errors.New("position type required")
	// ErrStepLocked rejects forward navigation past an unanswered scenario.
	ErrStepLocked = errors.New("complete the current question before moving ahead")
	// ErrAlreadyAnswered rejects a second submission for the same scenario.
	ErrAlreadyAnswered = errors.New("scenario already answered")
	// ErrAlreadyCompleted rejects beginning an assessment that is finished.
	ErrAlreadyCompleted = errors.New("assessment already completed")
	// ErrNotCompleted rejects the contact form before the last submission.
	ErrNotCompleted = errors.New("assessment not completed")
	// ErrEmptyResponse rejects blank text and zero-byte audio submissions.
	ErrEmptyResponse = errors.New("response is empty")
	// ErrNotAudio rejects files whose MIME type is not audio/*.
	ErrNotAudio = errors.New("file is not an audio file")
	// ErrFileTooLarge rejects audio above the configured size limit.
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrIncompleteContact rejects the contact form with required fields blank.
	ErrIncompleteContact = errors.New("contact details incomplete")

	// ErrInvalidScenario rejects scenario writes with blank title or description.
	ErrInvalidScenario = errors.New("scenario title and description required")
	// ErrScenarioInUse blocks deleting a scenario referenced by responses.
	ErrScenarioInUse = errors.New("scenario is referenced by existing responses")
	// ErrInvalidRating rejects scores outside 1..10.
	ErrInvalidRating = errors.New("rating must be between 1 and 10")

	// ErrRecordingInProgress rejects starting or selecting while recording.
	ErrRecordingInProgress = errors.New("recording already in progress")
	// ErrNotRecording rejects chunks and stops outside the Recording state.
	ErrNotRecording = errors.New("no recording in progress")
	// ErrNothingCaptured is returned when submit is attempted with no capture.
	ErrNothingCaptured = errors.New("nothing captured")
	// ErrCaptureBusy is returned when a capture is already being submitted.
	ErrCaptureBusy = errors.New("capture submission already in flight")
)
