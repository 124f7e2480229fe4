package workflow

import (
	"errors"
	"fmt"
	"time"

	"audio-transcriber/internal/app/intake"
)

// State is the single source of truth for where a transcription stands.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ErrorKind classifies the error shown to the user.
type ErrorKind string

const (
	ErrorNoFileSelected  ErrorKind = "no_file_selected"
	ErrorUnsupportedType ErrorKind = "unsupported_type"
	ErrorTooLarge        ErrorKind = "too_large"
	ErrorRequestFailed   ErrorKind = "request_failed"
)

// User-facing messages, one per ErrorKind.
const (
	MessageNoFile              = "Please upload an audio or video file first"
	MessageUnsupportedType     = "Please upload a valid audio or video file (MP3, MP4, WAV, M4A, WEBM)"
	MessageTooLarge            = "File size exceeds 25MB limit"
	MessageTranscriptionFailed = "Failed to transcribe the file. Please try again."
)

var (
	ErrNoFileSelected = errors.New("no file selected")
	ErrAlreadyLoading = errors.New("transcription already in progress")
	ErrClosed         = errors.New("controller closed")
)

// FileInfo describes the selected upload for display.
type FileInfo struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	SizeBytes int64  `json:"size_bytes"`
	SizeMB    string `json:"size_mb"`
}

// ErrorInfo is the error currently shown to the user.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// Detail carries the offending value for validation errors.
	Detail string `json:"detail,omitempty"`
}

// Snapshot is an immutable view of the controller state.
type Snapshot struct {
	Version   uint64     `json:"version"`
	State     State      `json:"state"`
	File      *FileInfo  `json:"file,omitempty"`
	Result    string     `json:"result,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	// Draining is set while a superseded backend call has not returned yet.
	Draining  bool       `json:"draining,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CanSubmit mirrors the enabled state of the submit control.
func (s Snapshot) CanSubmit() bool {
	return s.File != nil && s.State != StateLoading && !s.Draining
}

func newFileInfo(upload intake.AcceptedUpload) *FileInfo {
	return &FileInfo{
		Name:      upload.Name,
		MediaType: upload.DeclaredMediaType,
		SizeBytes: upload.SizeBytes,
		SizeMB:    fmt.Sprintf("%.2f", float64(upload.SizeBytes)/(1024*1024)),
	}
}

func rejectionInfo(err error) *ErrorInfo {
	var verr *intake.ValidationError
	if errors.As(err, &verr) && verr.Reason == intake.ReasonTooLarge {
		return &ErrorInfo{Kind: ErrorTooLarge, Message: MessageTooLarge, Detail: verr.Value}
	}
	info := &ErrorInfo{Kind: ErrorUnsupportedType, Message: MessageUnsupportedType}
	if verr != nil {
		info.Detail = verr.Value
	}
	return info
}
