package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/domain"
)

func TestCaptureLifecycle(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)

	if session.State() != app.CaptureIdle {
		t.Fatalf("expected idle, got %s", session.State())
	}

	released := 0
	if err := session.Start(func() { released++ }, "audio/webm", "webm"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.State() != app.CaptureRecording {
		t.Fatalf("expected recording, got %s", session.State())
	}

	if _, err := session.AppendChunk([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := session.AppendChunk([]byte{5, 6}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	capture, err := session.Stop()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if session.State() != app.CaptureCaptured {
		t.Fatalf("expected captured, got %s", session.State())
	}
	if len(capture.Data) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(capture.Data))
	}
	if capture.Duration < 1 {
		t.Fatalf("expected at least 1 second recorded, got %d", capture.Duration)
	}
	if released != 1 {
		t.Fatalf("expected release once after stop, got %d", released)
	}
}

func TestCaptureReleaseExactlyOnce(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)

	released := 0
	if err := session.Start(func() { released++ }, "", ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := session.AppendChunk([]byte{1, 2}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := session.Discard(); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	session.Close()
	if released != 1 {
		t.Fatalf("expected exactly one release, got %d", released)
	}
}

func TestCaptureDiscardWhileRecordingReleases(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)

	released := 0
	if err := session.Start(func() { released++ }, "", ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Discard(); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	if session.State() != app.CaptureIdle {
		t.Fatalf("expected idle after discard, got %s", session.State())
	}
	if released != 1 {
		t.Fatalf("expected release on discard, got %d", released)
	}
	if _, err := session.BeginSubmit(); !errors.Is(err, domain.ErrNothingCaptured) {
		t.Fatalf("expected nothing captured after discard, got %v", err)
	}
}

func TestCaptureDoubleStartRejected(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)
	if err := session.Start(nil, "", ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Start(nil, "", ""); !errors.Is(err, domain.ErrRecordingInProgress) {
		t.Fatalf("expected recording in progress, got %v", err)
	}
}

func TestCaptureUploadReplacesRecording(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)

	if err := session.Start(nil, "audio/webm", "webm"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := session.AppendChunk([]byte{1, 2, 3}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := session.SelectUpload([]byte("mp3-bytes"), "audio/mpeg", "mp3"); err != nil {
		t.Fatalf("select upload failed: %v", err)
	}
	capture, err := session.BeginSubmit()
	if err != nil {
		t.Fatalf("begin submit failed: %v", err)
	}
	if !capture.Uploaded || capture.FileFormat != "mp3" {
		t.Fatalf("expected the uploaded file to win, got %+v", capture)
	}
	if capture.Duration != 0 {
		t.Fatalf("uploads carry no recorded duration, got %d", capture.Duration)
	}

	// A new recording clears the upload the same way.
	session.EndSubmit(false)
	if err := session.Start(nil, "audio/webm", "webm"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if _, err := session.AppendChunk([]byte{9, 9}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	capture, err = session.BeginSubmit()
	if err != nil {
		t.Fatalf("begin submit failed: %v", err)
	}
	if capture.Uploaded || capture.FileFormat != "webm" {
		t.Fatalf("expected the recording to win, got %+v", capture)
	}
}

func TestCaptureSubmitGuards(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)

	if _, err := session.BeginSubmit(); !errors.Is(err, domain.ErrNothingCaptured) {
		t.Fatalf("expected nothing captured, got %v", err)
	}

	if err := session.Start(nil, "", ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := session.BeginSubmit(); !errors.Is(err, domain.ErrRecordingInProgress) {
		t.Fatalf("expected recording in progress, got %v", err)
	}
	if _, err := session.AppendChunk([]byte{1}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if _, err := session.BeginSubmit(); err != nil {
		t.Fatalf("begin submit failed: %v", err)
	}
	if _, err := session.BeginSubmit(); !errors.Is(err, domain.ErrCaptureBusy) {
		t.Fatalf("expected busy during submit, got %v", err)
	}
	if err := session.Discard(); !errors.Is(err, domain.ErrCaptureBusy) {
		t.Fatalf("expected busy discard during submit, got %v", err)
	}

	// A failed submit keeps the capture for retry.
	session.EndSubmit(false)
	if session.State() != app.CaptureCaptured {
		t.Fatalf("expected captured after failed submit, got %s", session.State())
	}
	if _, err := session.BeginSubmit(); err != nil {
		t.Fatalf("retry submit failed: %v", err)
	}
	session.EndSubmit(true)
	if session.State() != app.CaptureIdle {
		t.Fatalf("expected idle after successful submit, got %s", session.State())
	}
	if _, err := session.BeginSubmit(); !errors.Is(err, domain.ErrNothingCaptured) {
		t.Fatalf("expected retired session to be empty, got %v", err)
	}
}

func TestCaptureQuestionSeconds(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	current := base
	session := app.NewCaptureSessionWithClock("u1", 1, func() time.Time { return current })

	if got := session.QuestionSeconds(); got != 1 {
		t.Fatalf("expected floor of 1 second, got %d", got)
	}
	current = base.Add(42 * time.Second)
	if got := session.QuestionSeconds(); got != 42 {
		t.Fatalf("expected 42 seconds on the question, got %d", got)
	}
}

func TestCaptureChunkLevel(t *testing.T) {
	session := app.NewCaptureSession("u1", 1)
	if err := session.Start(nil, "", ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	silence := make([]byte, 64)
	ack, err := session.AppendChunk(silence)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if ack.Level != 0 {
		t.Fatalf("expected zero level for silence, got %f", ack.Level)
	}

	loud := make([]byte, 64)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0xff
		loud[i+1] = 0x7f // max positive 16-bit sample
	}
	ack, err = session.AppendChunk(loud)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if ack.Level < 0.9 {
		t.Fatalf("expected near-full level for max samples, got %f", ack.Level)
	}
}
