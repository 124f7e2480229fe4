package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audio-transcriber/internal/app/api/openai/whisper"
	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/api/simulated"
	"audio-transcriber/internal/app/api/whisper_server"
	"audio-transcriber/internal/app/intake"
	apptest "audio-transcriber/internal/app/testutil"
	"audio-transcriber/internal/config"
)

func TestNew_SelectsBackend(t *testing.T) {
	base := config.Default().Provider

	openaiCfg := base
	openaiCfg.Name = config.ProviderOpenAI
	openaiCfg.OpenAI.APIKey = "sk-test"

	serverCfg := base
	serverCfg.Name = config.ProviderWhisperServer
	serverCfg.WhisperServer.BaseURL = "http://localhost:8080"

	testCases := []struct {
		name   string
		cfg    config.ProviderConfig
		assert func(t *testing.T, v any)
	}{
		{"openai", openaiCfg, func(t *testing.T, v any) { assert.IsType(t, &whisper.RemoteTranscriber{}, v) }},
		{"whisper_server", serverCfg, func(t *testing.T, v any) { assert.IsType(t, &whisper_server.Provider{}, v) }},
		{"simulated", base, func(t *testing.T, v any) { assert.IsType(t, &simulated.Transcriber{}, v) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := provider.New(tc.cfg, nil)
			require.NoError(t, err)
			tc.assert(t, tr)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := config.Default().Provider

	cfg.Name = "unknown"
	_, err := provider.New(cfg, nil)
	assert.ErrorContains(t, err, "unknown provider type")

	cfg.Name = config.ProviderOpenAI
	_, err = provider.New(cfg, nil)
	assert.ErrorContains(t, err, "API key")

	cfg.Name = config.ProviderWhisperServer
	_, err = provider.New(cfg, nil)
	assert.ErrorContains(t, err, "base URL")
}

func TestNew_WhisperServerPassesLanguage(t *testing.T) {
	var language string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		language = r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hallo"})
	}))
	defer server.Close()

	cfg := config.Default().Provider
	cfg.Name = config.ProviderWhisperServer
	cfg.Language = "de"
	cfg.WhisperServer.BaseURL = server.URL

	tr, err := provider.New(cfg, nil)
	require.NoError(t, err)

	upload, err := intake.DefaultPolicy().Validate(apptest.MP3("a.mp3"))
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, "hallo", text)
	assert.Equal(t, "de", language)
}

func TestNew_SimulatedUsesConfiguredDelay(t *testing.T) {
	cfg := config.Default().Provider
	cfg.Simulated.Delay = time.Millisecond
	cfg.Simulated.Text = "simulated text"

	tr, err := provider.New(cfg, nil)
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), intake.AcceptedUpload{})
	require.NoError(t, err)
	assert.Equal(t, "simulated text", text)
}

func TestGetProviderInfo(t *testing.T) {
	info, err := provider.GetProviderInfo(config.ProviderOpenAI)
	require.NoError(t, err)
	assert.True(t, info.Remote)

	info, err = provider.GetProviderInfo(config.ProviderSimulated)
	require.NoError(t, err)
	assert.False(t, info.Remote)

	_, err = provider.GetProviderInfo("")
	assert.Error(t, err)
}
