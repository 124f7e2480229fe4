package progress

import (
	"io"
	"os"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type Config struct {
	Enabled bool
	Writer  io.Writer
}

// Manager renders spinners for work of unknown length. A disabled Manager renders nothing.
type Manager struct {
	container *mpb.Progress
	enabled   bool
}

// Spinner tracks one running operation.
type Spinner struct {
	bar     *mpb.Bar
	enabled bool
}

func NewManager(config Config) *Manager {
	if !config.Enabled {
		return &Manager{enabled: false}
	}

	writer := config.Writer
	if writer == nil {
		writer = os.Stderr
	}

	return &Manager{
		container: mpb.New(
			mpb.WithOutput(writer),
			mpb.WithRefreshRate(120*time.Millisecond),
		),
		enabled: true,
	}
}

// Start adds a spinner labelled description.
func (m *Manager) Start(description string) *Spinner {
	if !m.enabled || m.container == nil {
		return &Spinner{enabled: false}
	}

	bar := m.container.New(0, mpb.SpinnerStyle(),
		mpb.BarFillerOnComplete("done"),
		mpb.PrependDecorators(
			decor.Name(description+" ", decor.WC{W: len(description) + 1, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.OnAbort(decor.Elapsed(decor.ET_STYLE_GO), "failed"),
		),
	)
	return &Spinner{bar: bar, enabled: true}
}

// Done completes the spinner, or aborts it when ok is false.
func (s *Spinner) Done(ok bool) {
	if !s.enabled || s.bar == nil {
		return
	}
	if ok {
		s.bar.SetTotal(-1, true)
		return
	}
	s.bar.Abort(false)
}

// Wait blocks until every spinner has finished rendering.
func (m *Manager) Wait() {
	if m.enabled && m.container != nil {
		m.container.Wait()
	}
}

func IsTTY(writer io.Writer) bool {
	if writer == nil {
		return false
	}

	if file, ok := writer.(*os.File); ok {
		stat, err := file.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// ShouldShow reports whether spinners make sense on stderr.
func ShouldShow(disabled bool) bool {
	if disabled {
		return false
	}
	return IsTTY(os.Stderr)
}
