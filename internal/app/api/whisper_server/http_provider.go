package whisper_server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"audio-transcriber/internal/app/api"
	"audio-transcriber/internal/app/intake"
)

const providerName = "whisper_server"

// WhisperServerConfig represents configuration for the whisper-server HTTP API
type WhisperServerConfig struct {
	BaseURL        string            `yaml:"base_url"`        // e.g. "http://192.168.1.100:8080"
	InferencePath  string            `yaml:"inference_path"`  // default "/inference"
	Timeout        time.Duration     `yaml:"timeout"`         // zero leaves the deadline to ctx
	Language       string            `yaml:"language"`        // default language code
	ResponseFormat string            `yaml:"response_format"` // json or text
	Temperature    float64           `yaml:"temperature"`
	CustomHeaders  map[string]string `yaml:"custom_headers"`
}

// WhisperServerResponse represents the JSON response from whisper-server
type WhisperServerResponse struct {
	Text     string  `json:"text,omitempty"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Provider implements transcription via HTTP multipart to a whisper-server instance
type Provider struct {
	config WhisperServerConfig
	client *http.Client
}

// NewProvider creates a new whisper-server HTTP provider
func NewProvider(config WhisperServerConfig) *Provider {
	if config.InferencePath == "" {
		config.InferencePath = "/inference"
	}
	if config.ResponseFormat == "" {
		config.ResponseFormat = "json"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Provider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Transcribe posts the upload and returns the transcribed text.
func (p *Provider) Transcribe(ctx context.Context, upload intake.AcceptedUpload) (string, error) {
	if upload.Open == nil {
		return "", p.fail("invalid_input", "upload has no payload", false, nil)
	}

	body, contentType, err := p.createMultipartForm(upload)
	if err != nil {
		return "", p.fail("form_creation_failed", "failed to create multipart form", false, err)
	}

	url := p.config.BaseURL + p.config.InferencePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", p.fail("request_creation_failed", "failed to create HTTP request", false, err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	for key, value := range p.config.CustomHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", p.fail("request_failed", "HTTP request failed", true, err)
	}
	defer resp.Body.Close()

	responseData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", p.fail("response_read_failed", "failed to read response", true, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", p.fail("api_error",
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseData))),
			resp.StatusCode >= 500, nil)
	}

	text, err := p.parseResponse(responseData)
	if err != nil {
		return "", p.fail("response_parse_failed", "failed to parse response", false, err)
	}
	return text, nil
}

func (p *Provider) createMultipartForm(upload intake.AcceptedUpload) (*bytes.Buffer, string, error) {
	src, err := upload.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", upload.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("failed to copy file content: %w", err)
	}

	params := map[string]string{
		"response_format": p.config.ResponseFormat,
		"temperature":     fmt.Sprintf("%.2f", p.config.Temperature),
	}
	if p.config.Language != "" {
		params["language"] = p.config.Language
	}
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func (p *Provider) parseResponse(data []byte) (string, error) {
	if p.config.ResponseFormat == "text" {
		return strings.TrimSpace(string(data)), nil
	}
	var resp WhisperServerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *Provider) fail(code, message string, retryable bool, err error) error {
	return &api.TranscriptionError{
		Provider:  providerName,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Err:       err,
	}
}
