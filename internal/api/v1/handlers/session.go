package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"audio-transcriber/internal/api/middleware"
	"audio-transcriber/internal/api/v1/services"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/workflow"
)

// DefaultHeartbeat is how often an idle event stream is pinged.
const DefaultHeartbeat = 15 * time.Second

// SessionHandler handles the upload page endpoints
type SessionHandler struct {
	service   services.SessionService
	policy    intake.Policy
	heartbeat time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service services.SessionService, policy intake.Policy, heartbeat time.Duration) *SessionHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &SessionHandler{
		service:   service,
		policy:    policy,
		heartbeat: heartbeat,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	response, err := h.service.CreateSession(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	response, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Delete handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectFile handles PUT /api/v1/sessions/:id/file
// Responds 200 with the snapshot when the file is accepted and 422 when it is rejected,
// including files larger than the request body limit.
func (h *SessionHandler) SelectFile(c *gin.Context) {
	candidate, err := readUpload(c.Request, h.policy)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	snap, err := h.service.SelectFile(c.Request.Context(), c.Param("id"), candidate)
	h.respondSnapshot(c, http.StatusOK, snap, err)
}

// RemoveFile handles DELETE /api/v1/sessions/:id/file
func (h *SessionHandler) RemoveFile(c *gin.Context) {
	snap, err := h.service.RemoveFile(c.Request.Context(), c.Param("id"))
	h.respondSnapshot(c, http.StatusOK, snap, err)
}

// Submit handles POST /api/v1/sessions/:id/transcriptions
// Responds 202 with the Loading snapshot, 400 with the snapshot when no file is
// selected and 409 while a request is in flight.
func (h *SessionHandler) Submit(c *gin.Context) {
	snap, err := h.service.Submit(c.Request.Context(), c.Param("id"))
	h.respondSnapshot(c, http.StatusAccepted, snap, err)
}

// Events handles GET /api/v1/sessions/:id/events
// Streams snapshots as server-sent events. Without Last-Event-ID the stream opens with the
// current snapshot; with it, retained events after that id are replayed first.
func (h *SessionHandler) Events(c *gin.Context) {
	ctrl, err := h.service.Controller(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	events, cancel := ctrl.Subscribe(32)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	var last int64
	if lastID, err := strconv.ParseInt(c.GetHeader("Last-Event-ID"), 10, 64); err == nil {
		last = lastID
		for _, ev := range ctrl.Events(last) {
			c.Render(-1, toSSE(ev))
			last = ev.Seq
		}
	} else {
		snap := ctrl.Snapshot()
		last = int64(snap.Version)
		c.Render(-1, sse.Event{
			Id:    strconv.FormatInt(last, 10),
			Event: "snapshot",
			Data:  snap,
		})
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if ev.Seq <= last {
				return true
			}
			last = ev.Seq
			c.Render(-1, toSSE(ev))
			return true
		case <-heartbeat.C:
			c.Render(-1, sse.Event{Event: "ping", Data: time.Now().Unix()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// respondSnapshot writes snap with okStatus, or maps err. Rejections and a missing file
// still answer with the snapshot so the client can render the error message.
func (h *SessionHandler) respondSnapshot(c *gin.Context, okStatus int, snap workflow.Snapshot, err error) {
	switch {
	case err == nil:
		c.JSON(okStatus, snap)
	case stderrors.Is(err, intake.ErrUnsupportedType), stderrors.Is(err, intake.ErrTooLarge):
		c.JSON(http.StatusUnprocessableEntity, snap)
	case stderrors.Is(err, workflow.ErrNoFileSelected):
		c.JSON(http.StatusBadRequest, snap)
	default:
		middleware.HandleError(c, services.ToAPIError(err))
	}
}

func toSSE(ev workflow.Event) sse.Event {
	return sse.Event{
		Id:    strconv.FormatInt(ev.Seq, 10),
		Event: string(ev.Type),
		Data:  ev.Snapshot,
	}
}
