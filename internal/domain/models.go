package domain

import "time"

// Role classifies an account. The role claim is resolved once at login and
// carried as data; it is never derived from the email address.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleAdmin     Role = "admin"
)

// ResponseType tags how a scenario is answered.
type ResponseType string

const (
	ResponseAudio ResponseType = "audio"
	ResponseText  ResponseType = "text"
)

// PositionType is the track an applicant selects before the first question.
// It does not alter the question set.
type PositionType string

const (
	PositionVoice    PositionType = "voice"
	PositionNonVoice PositionType = "non-voice"
)

// FlowState is the applicant-visible assessment state derived from the
// profile and the set of persisted responses.
type FlowState string

const (
	// StatePositionPending: assessment not started; a position type must be
	// chosen before the first question is shown.
	StatePositionPending FlowState = "position_pending"
	StateInProgress      FlowState = "in_progress"
	// StateContactForm: all scenarios answered; the contact-details form is
	// shown pre-filled and stays editable.
	StateContactForm FlowState = "contact_form"
)

// Scenario is one interview question. DisplayOrder defines the traversal
// sequence for applicants; inactive scenarios are hidden from them.
type Scenario struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	ResponseType ResponseType `json:"responseType"`
	DisplayOrder int          `json:"displayOrder"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Profile is one candidate's account and progress record. The cursor
// (CurrentScenarioIndex) points at the next unanswered scenario; once it
// equals the scenario count the assessment is complete.
type Profile struct {
	ID                   string       `json:"id"`
	Email                string       `json:"email"`
	PasswordHash         []byte       `json:"-"`
	Role                 Role         `json:"role"`
	PositionType         PositionType `json:"positionType,omitempty"`
	CurrentScenarioIndex int          `json:"currentScenarioIndex"`
	InterviewStartedAt   *time.Time   `json:"interviewStartedAt,omitempty"`
	CompletedAt          *time.Time   `json:"completedAt,omitempty"`
	FullName             string       `json:"fullName,omitempty"`
	PhoneNumber          string       `json:"phoneNumber,omitempty"`
	Country              string       `json:"country,omitempty"`
	ReferredBy           string       `json:"referredBy,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

// Recording is an audio answer stored in the object store under StorageKey.
type Recording struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ScenarioID   int64     `json:"scenarioId"`
	StorageKey   string    `json:"storageKey"`
	FileFormat   string    `json:"fileFormat"`
	ResponseTime int       `json:"responseTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TextResponse is a written answer.
type TextResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ScenarioID   int64     `json:"scenarioId"`
	ResponseText string    `json:"responseText"`
	ResponseTime int       `json:"responseTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ResponseRating is a staff evaluation of one response. Exactly one of
// RecordingID / TextResponseID is set. At most one rating exists per
// response; re-rating overwrites in place.
type ResponseRating struct {
	ID             string    `json:"id"`
	RecordingID    string    `json:"recordingId,omitempty"`
	TextResponseID string    `json:"textResponseId,omitempty"`
	Rating         int       `json:"rating"`
	Feedback       string    `json:"feedback,omitempty"`
	RatedBy        string    `json:"ratedBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ContactDetails is the post-assessment form.
type ContactDetails struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Country     string `json:"country"`
	ReferredBy  string `json:"referredBy,omitempty"`
}

// ReviewedRecording is a recording joined with its rating and a playable
// signed URL. Exists is false when the stored object could not be resolved;
// the rest of the batch is unaffected.
type ReviewedRecording struct {
	Recording
	SignedURL string          `json:"signedUrl,omitempty"`
	Exists    bool            `json:"exists"`
	Rating    *ResponseRating `json:"rating,omitempty"`
}

// ReviewedTextResponse is a text response joined with its rating.
type ReviewedTextResponse struct {
	TextResponse
	Rating *ResponseRating `json:"rating,omitempty"`
}

// ApplicantReview is the denormalized admin view of one applicant.
type ApplicantReview struct {
	Profile       Profile                `json:"profile"`
	Recordings    []ReviewedRecording    `json:"recordings"`
	TextResponses []ReviewedTextResponse `json:"textResponses"`
}

// ScenarioResponse is one response (of either kind) shaped for the
// per-scenario review panel.
type ScenarioResponse struct {
	Kind           ResponseType    `json:"kind"`
	ID             string          `json:"id"`
	ApplicantID    string          `json:"applicantId"`
	ApplicantEmail string          `json:"applicantEmail,omitempty"`
	ResponseTime   int             `json:"responseTime"`
	CreatedAt      time.Time       `json:"createdAt"`
	SignedURL      string          `json:"signedUrl,omitempty"`
	Exists         bool            `json:"exists"`
	Text           string          `json:"text,omitempty"`
	Rating         *ResponseRating `json:"rating,omitempty"`
}
