package app

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// CaptureState is the per-question recording sub-state.
type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRecording  CaptureState = "recording"
	CaptureCaptured   CaptureState = "captured"
	CaptureSubmitting CaptureState = "submitting"
)

// Capture is a finished recording or a selected upload, ready to submit.
type Capture struct {
	Data        []byte
	ContentType string
	FileFormat  string
	// Duration is the recorded seconds; zero for uploaded files.
	Duration int
	Uploaded bool
}

// ChunkAck reports elapsed time and an amplitude level after each chunk.
// The level feeds UI feedback only and is not persisted.
type ChunkAck struct {
	Elapsed int     `json:"elapsed"`
	Level   float64 `json:"level"`
}

// CaptureSession drives one applicant's answer capture for one scenario as
// an explicit state machine: Idle -> Recording -> Captured -> Submitting.
// Source teardown is tied to state transitions so the input is released on
// every exit path (stop, discard, error, eviction) exactly once.
//
// The session also carries the question timer: it starts when the session is
// created for a not-yet-answered scenario and its value becomes the
// response_time of the eventual submission.
type CaptureSession struct {
	userID     string
	scenarioID int64

	mu        sync.Mutex
	state     CaptureState
	chunks    [][]byte
	total     int
	content   string
	format    string
	uploaded  *Capture
	release   func()
	released  bool
	openedAt  time.Time
	startedAt time.Time
	recorded  int
	now       func() time.Time
}

// NewCaptureSession is exported for capture store implementations.
func NewCaptureSession(userID string, scenarioID int64) *CaptureSession {
	return newCaptureSessionWithClock(userID, scenarioID, time.Now)
}

// NewCaptureSessionWithClock is test-only for deterministic timing.
func NewCaptureSessionWithClock(userID string, scenarioID int64, now func() time.Time) *CaptureSession {
	return newCaptureSessionWithClock(userID, scenarioID, now)
}

func newCaptureSessionWithClock(userID string, scenarioID int64, now func() time.Time) *CaptureSession {
	return &CaptureSession{
		userID:     userID,
		scenarioID: scenarioID,
		state:      CaptureIdle,
		openedAt:   now(),
		now:        now,
	}
}

func (s *CaptureSession) UserID() string    { return s.userID }
func (s *CaptureSession) ScenarioID() int64 { return s.scenarioID }

func (s *CaptureSession) State() CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QuestionSeconds is the time spent on the question since the session was
// opened, at least 1.
func (s *CaptureSession) QuestionSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	secs := int(s.now().Sub(s.openedAt) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Start begins recording. release is invoked exactly once when the source is
// no longer needed, whatever path the session exits through. Starting clears
// any previously selected upload; live capture and file upload are mutually
// exclusive.
func (s *CaptureSession) Start(release func(), contentType, fileFormat string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == CaptureRecording {
		return domain.ErrRecordingInProgress
	}
	if s.state == CaptureSubmitting {
		return domain.ErrCaptureBusy
	}
	if contentType == "" {
		contentType = "audio/webm"
	}
	if fileFormat == "" {
		fileFormat = "webm"
	}
	s.chunks = nil
	s.total = 0
	s.uploaded = nil
	s.content = contentType
	s.format = fileFormat
	s.release = release
	s.released = false
	s.startedAt = s.now()
	s.state = CaptureRecording
	return nil
}

// AppendChunk accumulates one binary chunk while recording.
func (s *CaptureSession) AppendChunk(data []byte) (ChunkAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CaptureRecording {
		return ChunkAck{}, domain.ErrNotRecording
	}
	if len(data) > 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.chunks = append(s.chunks, buf)
		s.total += len(buf)
	}
	return ChunkAck{
		Elapsed: int(s.now().Sub(s.startedAt) / time.Second),
		Level:   amplitude(data),
	}, nil
}

// Stop ends the recording, concatenates the chunks into one capture and
// releases the source.
func (s *CaptureSession) Stop() (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CaptureRecording {
		return Capture{}, domain.ErrNotRecording
	}
	data := make([]byte, 0, s.total)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	s.recorded = int(s.now().Sub(s.startedAt) / time.Second)
	if s.recorded < 1 && len(data) > 0 {
		s.recorded = 1
	}
	s.chunks = [][]byte{data}
	s.state = CaptureCaptured
	s.releaseLocked()
	return Capture{
		Data:        data,
		ContentType: s.content,
		FileFormat:  s.format,
		Duration:    s.recorded,
	}, nil
}

// SelectUpload replaces the capture with a file chosen from disk, clearing
// any recorded chunks.
func (s *CaptureSession) SelectUpload(data []byte, contentType, fileFormat string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case CaptureRecording:
		return domain.ErrRecordingInProgress
	case CaptureSubmitting:
		return domain.ErrCaptureBusy
	}
	s.chunks = nil
	s.total = 0
	s.recorded = 0
	s.uploaded = &Capture{
		Data:        data,
		ContentType: contentType,
		FileFormat:  fileFormat,
		Uploaded:    true,
	}
	s.state = CaptureCaptured
	return nil
}

// Discard drops the capture and returns to Idle, releasing the source if it
// is still held.
func (s *CaptureSession) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == CaptureSubmitting {
		return domain.ErrCaptureBusy
	}
	s.chunks = nil
	s.total = 0
	s.recorded = 0
	s.uploaded = nil
	s.state = CaptureIdle
	s.releaseLocked()
	return nil
}

// BeginSubmit hands the capture out for persistence and guards against
// concurrent submissions. The caller must follow with EndSubmit.
func (s *CaptureSession) BeginSubmit() (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case CaptureSubmitting:
		return Capture{}, domain.ErrCaptureBusy
	case CaptureRecording:
		return Capture{}, domain.ErrRecordingInProgress
	}
	if s.uploaded != nil {
		s.state = CaptureSubmitting
		return *s.uploaded, nil
	}
	if len(s.chunks) == 0 || s.total == 0 {
		return Capture{}, domain.ErrNothingCaptured
	}
	data := make([]byte, 0, s.total)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	s.state = CaptureSubmitting
	return Capture{Data: data, ContentType: s.content, FileFormat: s.format, Duration: s.recorded}, nil
}

// EndSubmit records the outcome: success retires the session, failure
// returns to Captured so the applicant can retry without re-recording.
func (s *CaptureSession) EndSubmit(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != CaptureSubmitting {
		return
	}
	if ok {
		s.chunks = nil
		s.total = 0
		s.uploaded = nil
		s.state = CaptureIdle
		s.releaseLocked()
		return
	}
	s.state = CaptureCaptured
}

// Close releases the source regardless of state. Stores call it on eviction.
func (s *CaptureSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *CaptureSession) releaseLocked() {
	if s.released || s.release == nil {
		return
	}
	s.released = true
	s.release()
}

// amplitude computes an RMS level in [0,1] treating the chunk as 16-bit
// little-endian PCM. Non-PCM containers yield a rough but monotonic signal,
// which is all the UI meter needs.
func amplitude(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sum float64
	n := len(data) / 2
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		f := float64(v) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}
