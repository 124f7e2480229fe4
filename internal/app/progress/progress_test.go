package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitWithin(t *testing.T, m *Manager) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("progress container did not finish")
	}
}

func TestManager_Disabled(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(Config{Enabled: false, Writer: &buf})

	s := m.Start("Transcribing")
	s.Done(true)
	waitWithin(t, m)

	assert.Empty(t, buf.String())
}

func TestManager_SpinnerCompletes(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(Config{Enabled: true, Writer: &buf})

	s := m.Start("Transcribing a.mp3")
	time.Sleep(10 * time.Millisecond)
	s.Done(true)
	waitWithin(t, m)
}

func TestManager_SpinnerAborts(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(Config{Enabled: true, Writer: &buf})

	s := m.Start("Transcribing a.mp3")
	s.Done(false)
	waitWithin(t, m)
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, ShouldShow(true))
}
