package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in ProviderConfig.Name.
const (
	ProviderOpenAI        = "openai"
	ProviderWhisperServer = "whisper_server"
	ProviderSimulated     = "simulated"
)

// Defaults
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultMaxBodyBytes    = 32 << 20
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRequestTimeout  = 5 * time.Minute
	DefaultSessionTTL      = 30 * time.Minute
	DefaultSweepInterval   = time.Minute
	DefaultSimulatedDelay  = 2 * time.Second
	DefaultOpenAIModel     = "whisper-1"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Env             string        `yaml:"env" validate:"oneof=development production test"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"min=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// ProviderConfig selects and configures the transcription backend.
type ProviderConfig struct {
	Name           string        `yaml:"name" validate:"oneof=openai whisper_server simulated"`
	Language       string        `yaml:"language"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`

	OpenAI        OpenAIConfig        `yaml:"openai"`
	WhisperServer WhisperServerConfig `yaml:"whisper_server"`
	Simulated     SimulatedConfig     `yaml:"simulated"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Model   string `yaml:"model"`
	Prompt  string `yaml:"prompt"`
}

type WhisperServerConfig struct {
	BaseURL       string            `yaml:"base_url" validate:"omitempty,url"`
	InferencePath string            `yaml:"inference_path"`
	Temperature   float64           `yaml:"temperature" validate:"gte=0,lte=1"`
	CustomHeaders map[string]string `yaml:"custom_headers"`
}

type SimulatedConfig struct {
	Delay time.Duration `yaml:"delay" validate:"gte=0"`
	Text  string        `yaml:"text"`
	Fail  bool          `yaml:"fail"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
	EventHistory  int           `yaml:"event_history" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			Env:             DefaultEnv,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Provider: ProviderConfig{
			Name:           ProviderSimulated,
			RequestTimeout: DefaultRequestTimeout,
			OpenAI: OpenAIConfig{
				Model: DefaultOpenAIModel,
			},
			WhisperServer: WhisperServerConfig{
				InferencePath: "/inference",
			},
			Simulated: SimulatedConfig{
				Delay: DefaultSimulatedDelay,
			},
		},
		Session: SessionConfig{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
			EventHistory:  100,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// TRANSCRIBER_CONFIG when path is empty), then environment variables. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TRANSCRIBER_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = d
		return nil
	}

	str("TRANSCRIBER_HOST", &c.Server.Host)
	str("TRANSCRIBER_ENV", &c.Server.Env)
	str("TRANSCRIBER_PROVIDER", &c.Provider.Name)
	str("TRANSCRIBER_LANGUAGE", &c.Provider.Language)
	str("OPENAI_API_KEY", &c.Provider.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.Provider.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.Provider.OpenAI.Model)
	str("WHISPER_SERVER_URL", &c.Provider.WhisperServer.BaseURL)

	if v, ok := lookup("TRANSCRIBER_PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: TRANSCRIBER_PORT: %q is not a number", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	for key, dst := range map[string]*time.Duration{
		"TRANSCRIBER_REQUEST_TIMEOUT": &c.Provider.RequestTimeout,
		"TRANSCRIBER_SESSION_TTL":     &c.Session.TTL,
		"TRANSCRIBER_SIMULATED_DELAY": &c.Provider.Simulated.Delay,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks struct tags and the rules that span fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch c.Provider.Name {
	case ProviderOpenAI:
		if c.Provider.OpenAI.APIKey == "" {
			return fmt.Errorf("%w: provider %q requires OPENAI_API_KEY", ErrInvalidConfig, ProviderOpenAI)
		}
	case ProviderWhisperServer:
		if c.Provider.WhisperServer.BaseURL == "" {
			return fmt.Errorf("%w: provider %q requires WHISPER_SERVER_URL", ErrInvalidConfig, ProviderWhisperServer)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment reports whether development logging and gin debug mode apply.
func (s ServerConfig) IsDevelopment() bool {
	return s.Env == DefaultEnv
}
