package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "audio-transcriber/internal/api/errors"
	"audio-transcriber/internal/api/v1/dto"
	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/metrics"
	"audio-transcriber/internal/app/session"
	apptest "audio-transcriber/internal/app/testutil"
	"audio-transcriber/internal/app/workflow"
)

const testMaxSize = 4096

type testEnv struct {
	server      *Server
	store       *session.Store
	transcriber *apptest.MockTranscriber
}

func newTestEnv(t *testing.T, maxBodyBytes int64) *testEnv {
	t.Helper()

	tr := apptest.NewMockTranscriber()
	policy := intake.NewPolicy(intake.AllowedMediaTypes, testMaxSize)
	m := metrics.New()
	newController := func() *workflow.Controller {
		return workflow.NewController(tr, workflow.WithPolicy(policy), workflow.WithMetrics(m))
	}
	store := session.NewStore(newController, time.Hour, nil, m)

	info, err := provider.GetProviderInfo("simulated")
	require.NoError(t, err)

	srv := NewServer(Config{
		Addr:         "127.0.0.1:0",
		Environment:  "test",
		MaxBodyBytes: maxBodyBytes,
		Heartbeat:    time.Hour,
	}, Dependencies{
		Sessions:      store,
		NewController: newController,
		Policy:        policy,
		Provider:      info,
		Metrics:       m,
	}, nil)

	return &testEnv{server: srv, store: store, transcriber: tr}
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, method, path, filename, contentType string, size int) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := apptest.MultipartFile(t, "file", filename, contentType, bytes.Repeat([]byte{0x1}, size))
	return e.do(t, method, path, body, ct)
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, workflow.StateIdle, resp.Snapshot.State)
	return resp.ID
}

func (e *testEnv) wait(t *testing.T, id string) {
	t.Helper()
	sess, err := e.store.Get(id)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Controller.Wait(ctx))
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) workflow.Snapshot {
	t.Helper()
	var snap workflow.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var apiErr apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealthAndIndex(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Audio Transcriber")

	// The page accepts dropped files and locks the picker while loading.
	rec = env.do(t, http.MethodGet, "/static/app.js", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `addEventListener("drop"`)
	assert.Contains(t, rec.Body.String(), "input.disabled = loading")
	assert.Contains(t, rec.Body.String(), `form.append("size"`)

	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transcriber_active_sessions")
}

func TestIntakeInfo(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodGet, "/api/v1/intake", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info dto.IntakeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Len(t, info.AllowedMediaTypes, 7)
	assert.Contains(t, info.AllowedMediaTypes, "audio/mpeg")
	assert.Equal(t, int64(testMaxSize), info.MaxSizeBytes)
	assert.Equal(t, "audio/*, video/mp4, video/webm", info.Accept)
	assert.Equal(t, "simulated", info.Provider.Name)
}

func TestSessionFlow_Succeeds(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.transcriber.On("Transcribe", "talk.mp3").Return("hello world", nil).Once()

	id := env.createSession(t)

	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 1024)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeSnapshot(t, rec)
	require.NotNil(t, snap.File)
	assert.Equal(t, "talk.mp3", snap.File.Name)
	assert.Equal(t, int64(1024), snap.File.SizeBytes)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/transcriptions", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, workflow.StateLoading, decodeSnapshot(t, rec).State)

	env.wait(t, id)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.StateSucceeded, resp.Snapshot.State)
	assert.Equal(t, "hello world", resp.Snapshot.Result)
	env.transcriber.AssertExpectations(t)
}

func TestSessionFlow_Failure(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.transcriber.On("Transcribe", "talk.mp3").Return("", errors.New("backend down")).Once()

	id := env.createSession(t)
	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/transcriptions", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.wait(t, id)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, "")
	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.StateFailed, resp.Snapshot.State)
	require.NotNil(t, resp.Snapshot.Error)
	assert.Equal(t, workflow.MessageTranscriptionFailed, resp.Snapshot.Error.Message)
}

func TestSelectFile_Rejections(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		contentType string
		size        int
		message     string
	}{
		{"unsupported type", "picture.png", "image/png", 100, workflow.MessageUnsupportedType},
		{"missing content type", "blob.bin", "", 100, workflow.MessageUnsupportedType},
		{"too large", "long.wav", "audio/wav", testMaxSize + 1, workflow.MessageTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, 1<<20)
			id := env.createSession(t)

			rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", tc.filename, tc.contentType, tc.size)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

			snap := decodeSnapshot(t, rec)
			assert.Nil(t, snap.File)
			require.NotNil(t, snap.Error)
			assert.Equal(t, tc.message, snap.Error.Message)
			assert.False(t, snap.CanSubmit())
		})
	}
}

func TestSelectFile_AtCeilingIsAccepted(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := env.createSession(t)

	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "edge.webm", "video/webm", testMaxSize)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSelectFile_MissingFilePart(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := env.createSession(t)

	body, ct := apptest.MultipartFile(t, "attachment", "talk.mp3", "audio/mpeg", []byte("x"))
	rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, apierrors.KindValidation, apiErr.Kind)
	assert.Equal(t, "is required", apiErr.Details["file"])
}

func TestSelectFile_OverBodyLimitIsRejectedOnMetadata(t *testing.T) {
	// Ceiling 4096, body limit 8192: the file part is cut off by the limit.
	testCases := []struct {
		name        string
		filename    string
		contentType string
		declared    int64
		kind        workflow.ErrorKind
		message     string
		detail      string
	}{
		{"too large", "long.wav", "audio/wav", 10000, workflow.ErrorTooLarge, workflow.MessageTooLarge, "10000"},
		{"unsupported type wins", "huge.png", "image/png", 10000, workflow.ErrorUnsupportedType, workflow.MessageUnsupportedType, "image/png"},
		{"no size field", "long.wav", "audio/wav", 0, workflow.ErrorTooLarge, workflow.MessageTooLarge, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, 8192)
			id := env.createSession(t)

			data := bytes.Repeat([]byte{0x1}, 10000)
			var body *bytes.Buffer
			var ct string
			if tc.declared > 0 {
				body, ct = apptest.MultipartUpload(t, tc.filename, tc.contentType, tc.declared, data)
			} else {
				body, ct = apptest.MultipartFile(t, "file", tc.filename, tc.contentType, data)
			}

			rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", body, ct)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

			snap := decodeSnapshot(t, rec)
			require.NotNil(t, snap.Error)
			assert.Equal(t, tc.kind, snap.Error.Kind)
			assert.Equal(t, tc.message, snap.Error.Message)
			if tc.detail != "" {
				assert.Equal(t, tc.detail, snap.Error.Detail)
			}

			// The rejection is recorded on the session.
			rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, "")
			require.Equal(t, http.StatusOK, rec.Code)
			var resp dto.SessionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Snapshot.Error)
			assert.Equal(t, tc.message, resp.Snapshot.Error.Message)
		})
	}
}

func TestSelectFile_OverCeilingWithinBodyLimit(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := env.createSession(t)

	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "long.wav", "audio/wav", 5000)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	snap := decodeSnapshot(t, rec)
	require.NotNil(t, snap.Error)
	assert.Equal(t, workflow.MessageTooLarge, snap.Error.Message)
	assert.Equal(t, "5000", snap.Error.Detail)
}

func TestSelectFile_BodyLimitBelowCeiling(t *testing.T) {
	env := newTestEnv(t, 2048)
	id := env.createSession(t)

	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 4000)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apierrors.KindPayloadTooLarge, decodeAPIError(t, rec).Kind)
}

func TestSubmit_WithoutFile(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/transcriptions", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, workflow.StateIdle, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, workflow.MessageNoFile, snap.Error.Message)
	assert.Equal(t, 0, env.transcriber.CallCount())
}

func TestSubmit_WhileLoadingConflicts(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.transcriber.Hold()
	env.transcriber.On("Transcribe", "talk.mp3").Return("done", nil).Once()

	id := env.createSession(t)
	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/transcriptions", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/transcriptions", nil, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierrors.KindConflict, decodeAPIError(t, rec).Kind)

	env.transcriber.Release()
	env.wait(t, id)
	assert.Equal(t, 1, env.transcriber.CallCount())
}

func TestRemoveFile(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := env.createSession(t)

	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/file", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Nil(t, snap.File)
	assert.Nil(t, snap.Error)
	assert.Equal(t, workflow.StateIdle, snap.State)
}

func TestSessionNotFoundAndDelete(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/nope", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, apierrors.KindNotFound, apiErr.Kind)
	assert.NotEmpty(t, apiErr.RequestID)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/nope/transcriptions", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := env.createSession(t)
	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOneShotTranscription(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.transcriber.On("Transcribe", "ok.mp3").Return("one shot text", nil).Once()
	env.transcriber.On("Transcribe", "bad.mp3").Return("", errors.New("backend down")).Once()

	rec := env.upload(t, http.MethodPost, "/api/v1/transcriptions", "ok.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp dto.TranscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "one shot text", resp.Text)
	assert.NotEmpty(t, resp.RequestID)

	rec = env.upload(t, http.MethodPost, "/api/v1/transcriptions", "bad.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, apierrors.KindUpstream, apiErr.Kind)
	assert.Equal(t, workflow.MessageTranscriptionFailed, apiErr.Message)

	rec = env.upload(t, http.MethodPost, "/api/v1/transcriptions", "picture.png", "image/png", 10)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	apiErr = decodeAPIError(t, rec)
	assert.Equal(t, "unsupported_type", apiErr.Code)
	assert.Equal(t, workflow.MessageUnsupportedType, apiErr.Message)
	assert.Equal(t, "image/png", apiErr.Details["value"])

	env.transcriber.AssertExpectations(t)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func readEvent(t *testing.T, lines <-chan string, eventType string) string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	found := false
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %s", eventType)
			}
			if line == "event:"+eventType {
				found = true
				continue
			}
			if found && strings.HasPrefix(line, "data:") {
				return strings.TrimPrefix(line, "data:")
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestSessionEvents(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.transcriber.On("Transcribe", "talk.mp3").Return("streamed text", nil).Once()

	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	id := env.createSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var snap workflow.Snapshot
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, lines, "snapshot")), &snap))
	assert.Equal(t, workflow.StateIdle, snap.State)

	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/transcriptions", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	readEvent(t, lines, "file_selected")
	readEvent(t, lines, "submitted")
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, lines, "succeeded")), &snap))
	assert.Equal(t, "streamed text", snap.Result)
}

func TestSessionEvents_Replay(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	id := env.createSession(t)
	rec := env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "picture.png", "image/png", 10)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = env.upload(t, http.MethodPut, "/api/v1/sessions/"+id+"/file", "talk.mp3", "audio/mpeg", 10)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var snap workflow.Snapshot
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, lines, "file_selected")), &snap))
	assert.Equal(t, "talk.mp3", snap.File.Name)
	assert.Equal(t, uint64(2), snap.Version)
}
