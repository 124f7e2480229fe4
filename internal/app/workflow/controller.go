package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"audio-transcriber/internal/app/api"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/metrics"
)

// Controller owns one selection and drives at most one transcription request at a time.
//
// Every Select and Remove advances the selection generation. A request remembers the
// generation it was issued under; when it resolves under a different generation its
// result is discarded instead of applied. Superseding a request also cancels its context.
type Controller struct {
	transcriber api.Transcriber
	policy      intake.Policy
	logger      *zap.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
	bus         *EventBus

	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	upload     *intake.AcceptedUpload
	snap       Snapshot
	generation uint64
	inflight   *request
	closed     bool
}

type request struct {
	id         string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logging.OrNop(logger) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithPolicy(policy intake.Policy) Option {
	return func(c *Controller) { c.policy = policy }
}

// WithTimeout bounds each backend call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// WithEventHistory sets how many past events are kept for replay.
func WithEventHistory(n int) Option {
	return func(c *Controller) { c.bus = NewEventBus(n) }
}

// NewController creates a controller in the Idle state.
func NewController(transcriber api.Transcriber, opts ...Option) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		transcriber: transcriber,
		policy:      intake.DefaultPolicy(),
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		bus:         NewEventBus(0),
		baseCtx:     ctx,
		stop:        stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap = Snapshot{State: StateIdle, UpdatedAt: c.now()}
	return c
}

// Select validates a candidate and, on acceptance, replaces the current upload.
// A rejected candidate sets the rejection error and leaves the previous upload selected.
func (c *Controller) Select(candidate intake.FileCandidate) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.snap, ErrClosed
	}

	c.supersedeLocked()
	c.snap.State = StateIdle
	c.snap.Result = ""
	c.snap.RequestID = ""

	upload, err := c.policy.Validate(candidate)
	if err != nil {
		info := rejectionInfo(err)
		c.metrics.ObserveValidation(string(info.Kind))
		c.logger.Info("File rejected",
			zap.String("name", candidate.Name),
			zap.String("media_type", candidate.DeclaredMediaType),
			zap.Int64("size_bytes", candidate.SizeBytes),
			zap.String("reason", string(info.Kind)),
		)
		c.snap.Error = info
		c.emitLocked(EventFileRejected)
		return c.snap, err
	}

	c.metrics.ObserveValidation("accepted")
	c.upload = &upload
	c.snap.File = newFileInfo(upload)
	c.snap.Error = nil
	c.emitLocked(EventFileSelected)
	return c.snap, nil
}

// Remove clears the upload, result and error unconditionally.
func (c *Controller) Remove() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	c.upload = nil
	c.snap.State = StateIdle
	c.snap.File = nil
	c.snap.Result = ""
	c.snap.Error = nil
	c.snap.RequestID = ""
	c.emitLocked(EventFileRemoved)
	return c.snap
}

// Submit issues a transcription request for the current upload. It is a no-op
// returning ErrAlreadyLoading while a request is in flight, and while a superseded
// call is draining (the snapshot then reports Draining).
func (c *Controller) Submit() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.snap, ErrClosed
	}
	if c.snap.State == StateLoading {
		return c.snap, ErrAlreadyLoading
	}
	if c.upload == nil {
		c.snap.State = StateIdle
		c.snap.Result = ""
		c.snap.Error = &ErrorInfo{Kind: ErrorNoFileSelected, Message: MessageNoFile}
		c.emitLocked(EventNoFile)
		return c.snap, ErrNoFileSelected
	}
	if c.inflight != nil {
		return c.snap, ErrAlreadyLoading
	}

	ctx, cancel := c.requestContext()
	req := &request{
		id:         c.newID(),
		generation: c.generation,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	c.inflight = req

	c.snap.State = StateLoading
	c.snap.Result = ""
	c.snap.Error = nil
	c.snap.RequestID = req.id
	c.emitLocked(EventSubmitted)

	c.logger.Info("Transcription submitted",
		zap.String("request_id", req.id),
		zap.String("name", c.upload.Name),
		zap.Int64("size_bytes", c.upload.SizeBytes),
	)

	go c.run(ctx, req, *c.upload)
	return c.snap, nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Busy reports whether a backend call is still running, including a superseded one.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Watched reports whether any subscriber is attached.
func (c *Controller) Watched() bool {
	return c.bus.Subscribers() > 0
}

// Wait blocks until the request in flight, if any, has resolved.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	req := c.inflight
	c.mu.Unlock()

	if req == nil {
		return nil
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe streams future events until the returned cancel func is called or the
// controller is closed.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.bus.Subscribe(buffer)
}

// Events returns retained events after seq.
func (c *Controller) Events(since int64) []Event {
	return c.bus.Since(since)
}

// Close cancels any request in flight and ends all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.stop()
	c.bus.Close()
}

func (c *Controller) requestContext() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(c.baseCtx, c.timeout)
	}
	return context.WithCancel(c.baseCtx)
}

// supersedeLocked invalidates the request in flight. The request keeps its slot until
// the backend call returns so that two calls never overlap.
func (c *Controller) supersedeLocked() {
	c.generation++
	if c.inflight != nil {
		c.logger.Debug("Superseding transcription request", zap.String("request_id", c.inflight.id))
		c.inflight.cancel()
		c.snap.Draining = true
	}
}

func (c *Controller) run(ctx context.Context, req *request, upload intake.AcceptedUpload) {
	defer req.cancel()

	start := time.Now()
	text, err := c.call(ctx, upload)
	c.resolve(req, text, err, time.Since(start))
}

func (c *Controller) call(ctx context.Context, upload intake.AcceptedUpload) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panic: %v", r)
		}
	}()
	return c.transcriber.Transcribe(ctx, upload)
}

func (c *Controller) resolve(req *request, text string, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(req.done)

	if c.inflight == req {
		c.inflight = nil
	}

	if c.closed || req.generation != c.generation {
		c.metrics.ObserveTranscription(metrics.OutcomeDiscarded, elapsed)
		c.logger.Debug("Discarding superseded transcription result",
			zap.String("request_id", req.id),
			zap.Duration("elapsed", elapsed),
		)
		if !c.closed && c.inflight == nil {
			c.snap.Draining = false
			c.emitLocked(EventDrained)
		}
		return
	}

	if err != nil {
		c.metrics.ObserveTranscription(metrics.OutcomeFailed, elapsed)
		c.logger.Warn("Transcription failed",
			zap.String("request_id", req.id),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		c.snap.State = StateFailed
		c.snap.Result = ""
		c.snap.Error = &ErrorInfo{Kind: ErrorRequestFailed, Message: MessageTranscriptionFailed}
		c.emitLocked(EventFailed)
		return
	}

	c.metrics.ObserveTranscription(metrics.OutcomeSucceeded, elapsed)
	c.logger.Info("Transcription complete",
		zap.String("request_id", req.id),
		zap.Duration("elapsed", elapsed),
		zap.Int("chars", len(text)),
	)
	c.snap.State = StateSucceeded
	c.snap.Result = text
	c.snap.Error = nil
	c.emitLocked(EventSucceeded)
}

func (c *Controller) emitLocked(eventType EventType) {
	c.snap.Version++
	c.snap.UpdatedAt = c.now()
	c.bus.Publish(Event{
		Timestamp: c.snap.UpdatedAt,
		Type:      eventType,
		Snapshot:  c.snap,
	})
}
