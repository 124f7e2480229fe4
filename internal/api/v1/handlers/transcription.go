package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"audio-transcriber/internal/api/middleware"
	"audio-transcriber/internal/api/v1/dto"
	"audio-transcriber/internal/api/v1/services"
	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/intake"
)

// TranscriptionHandler handles one-shot transcription and intake discovery
type TranscriptionHandler struct {
	service  services.TranscriptionService
	policy   intake.Policy
	provider provider.ProviderInfo
}

// NewTranscriptionHandler creates a new transcription handler
func NewTranscriptionHandler(service services.TranscriptionService, policy intake.Policy, info provider.ProviderInfo) *TranscriptionHandler {
	return &TranscriptionHandler{
		service:  service,
		policy:   policy,
		provider: info,
	}
}

// Transcribe handles POST /api/v1/transcriptions
// Validates the uploaded file, transcribes it and responds with the text.
func (h *TranscriptionHandler) Transcribe(c *gin.Context) {
	candidate, err := readUpload(c.Request, h.policy)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	response, err := h.service.Transcribe(c.Request.Context(), candidate)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Intake handles GET /api/v1/intake
func (h *TranscriptionHandler) Intake(c *gin.Context) {
	c.JSON(http.StatusOK, dto.IntakeResponse{
		AllowedMediaTypes: h.policy.AllowedTypes(),
		MaxSizeBytes:      h.policy.MaxSizeBytes(),
		Accept:            h.policy.Accept(),
		Provider:          h.provider,
	})
}
