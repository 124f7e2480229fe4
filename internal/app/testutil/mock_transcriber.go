package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"audio-transcriber/internal/app/intake"
)

// MockTranscriber is a testify mock of api.Transcriber.
//
// Expectations are keyed by upload name:
//
//	m.On("Transcribe", "a.mp3").Return("hello world", nil)
//
// Hold makes subsequent calls block until Release or until their context ends, which
// keeps a request in flight for as long as a test needs.
type MockTranscriber struct {
	mock.Mock

	mu       sync.Mutex
	gate     chan struct{}
	calls    int
	started  chan string
	canceled int
}

// NewMockTranscriber creates a mock that does not block.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{started: make(chan string, 64)}
}

// Transcribe implements api.Transcriber.
func (m *MockTranscriber) Transcribe(ctx context.Context, upload intake.AcceptedUpload) (string, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()

	select {
	case m.started <- upload.Name:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			m.mu.Lock()
			m.canceled++
			m.mu.Unlock()
			return "", ctx.Err()
		}
	}

	args := m.Called(upload.Name)
	return args.String(0), args.Error(1)
}

// Hold blocks calls made from now on until Release.
func (m *MockTranscriber) Hold() *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	return m
}

// Release unblocks held calls. Later calls no longer block.
func (m *MockTranscriber) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Started yields the upload name of each call as it begins.
func (m *MockTranscriber) Started() <-chan string {
	return m.started
}

func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CanceledCount is the number of held calls that ended because their context did.
func (m *MockTranscriber) CanceledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}
