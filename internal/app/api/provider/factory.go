package provider

import (
	"fmt"

	"go.uber.org/zap"

	"audio-transcriber/internal/app/api"
	"audio-transcriber/internal/app/api/openai/whisper"
	"audio-transcriber/internal/app/api/simulated"
	"audio-transcriber/internal/app/api/whisper_server"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/config"
)

// ProviderInfo describes a backend without creating it.
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Remote      bool   `json:"remote"`
}

var providers = map[string]ProviderInfo{
	config.ProviderOpenAI:        {Name: config.ProviderOpenAI, DisplayName: "OpenAI Whisper API", Remote: true},
	config.ProviderWhisperServer: {Name: config.ProviderWhisperServer, DisplayName: "Whisper Server (HTTP)", Remote: true},
	config.ProviderSimulated:     {Name: config.ProviderSimulated, DisplayName: "Simulated", Remote: false},
}

// GetProviderInfo returns provider information without creating an instance
func GetProviderInfo(name string) (ProviderInfo, error) {
	info, ok := providers[name]
	if !ok {
		return ProviderInfo{}, fmt.Errorf("unknown provider type: %s", name)
	}
	return info, nil
}

// New creates the backend selected by cfg.Name.
func New(cfg config.ProviderConfig, logger *zap.Logger) (api.Transcriber, error) {
	logger = logging.OrNop(logger)

	var t api.Transcriber
	switch cfg.Name {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		t = whisper.NewFromConfig(whisper.Config{
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.OpenAI.Model,
			Language: cfg.Language,
			Prompt:   cfg.OpenAI.Prompt,
		})
	case config.ProviderWhisperServer:
		if cfg.WhisperServer.BaseURL == "" {
			return nil, fmt.Errorf("whisper_server provider requires a base URL")
		}
		t = whisper_server.NewProvider(whisper_server.WhisperServerConfig{
			BaseURL:       cfg.WhisperServer.BaseURL,
			InferencePath: cfg.WhisperServer.InferencePath,
			Language:      cfg.Language,
			Temperature:   cfg.WhisperServer.Temperature,
			CustomHeaders: cfg.WhisperServer.CustomHeaders,
		})
	case config.ProviderSimulated:
		t = simulated.New(simulated.Config{
			Delay: cfg.Simulated.Delay,
			Text:  cfg.Simulated.Text,
			Fail:  cfg.Simulated.Fail,
		})
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Name)
	}

	logger.Info("Transcription provider ready",
		zap.String("provider", cfg.Name),
		zap.String("language", cfg.Language),
		zap.Duration("request_timeout", cfg.RequestTimeout),
	)
	return t, nil
}
