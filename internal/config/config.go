// Package config loads service configuration from an optional YAML file
// and ECHOLINGO_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	NATS          NATSConfig          `koanf:"nats"`
	Redis         RedisConfig         `koanf:"redis"`
	LLM           LLMConfig           `koanf:"llm"`
	Twilio        TwilioConfig        `koanf:"twilio"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	PublicURL       string   `koanf:"public_url"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// Per-IP webhook limiter, requests per second.
	WebhookRateLimit float64 `koanf:"webhook_rate_limit"`
	WebhookBurst     int     `koanf:"webhook_burst"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    Secret `koanf:"dsn"`
}

// NATSConfig configures the real-time event bus. With Embedded set an
// in-process server is started and URL is ignored.
type NATSConfig struct {
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
}

// RedisConfig configures webhook idempotency. Empty Addr keeps the
// dedupe window in process memory.
type RedisConfig struct {
	Addr      string   `koanf:"addr"`
	Password  Secret   `koanf:"password"`
	DB        int      `koanf:"db"`
	DedupeTTL Duration `koanf:"dedupe_ttl"`
}

// LLMConfig configures the two model backends: the fast model used for
// translation and entity extraction, and the analysis model used for
// message categorization and action-item summaries.
type LLMConfig struct {
	Provider         string   `koanf:"provider"`
	BaseURL          string   `koanf:"base_url"`
	Model            string   `koanf:"model"`
	APIKey           Secret   `koanf:"api_key"`
	AnalysisProvider string   `koanf:"analysis_provider"`
	AnalysisBaseURL  string   `koanf:"analysis_base_url"`
	AnalysisModel    string   `koanf:"analysis_model"`
	AnalysisAPIKey   Secret   `koanf:"analysis_api_key"`
	Timeout          Duration `koanf:"timeout"`
}

// TwilioConfig configures WhatsApp delivery and webhook verification.
type TwilioConfig struct {
	AccountSID         string `koanf:"account_sid"`
	AuthToken          Secret `koanf:"auth_token"`
	From               string `koanf:"from"`
	SupervisorTo       string `koanf:"supervisor_to"`
	ValidateSignatures bool   `koanf:"validate_signatures"`
}

// PipelineConfig bounds the supply agent.
type PipelineConfig struct {
	Timeout  Duration `koanf:"timeout"`
	Approver string   `koanf:"approver"`
}

// LoggingConfig is the file/env view of logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.WebhookRateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.webhook_rate_limit cannot be negative"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if !c.Store.DSN.IsSet() {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory, sqlite or postgres, got %q", c.Store.Driver))
	}

	for name, p := range map[string]string{"llm.provider": c.LLM.Provider, "llm.analysis_provider": c.LLM.AnalysisProvider} {
		switch p {
		case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		default:
			errs = append(errs, fmt.Errorf("%s must be openai, anthropic or ollama, got %q", name, p))
		}
	}

	if c.Twilio.ValidateSignatures {
		if !c.Twilio.AuthToken.IsSet() {
			errs = append(errs, fmt.Errorf("twilio.auth_token is required when validate_signatures is set"))
		}
		if _, err := url.ParseRequestURI(c.Server.PublicURL); err != nil {
			errs = append(errs, fmt.Errorf("server.public_url must be an absolute URL when validate_signatures is set"))
		}
	}

	if c.Pipeline.Timeout.Duration() <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.timeout must be positive"))
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.sample_rate must be within [0,1]"))
	}

	return errors.Join(errs...)
}

// DeliveryEnabled reports whether outbound WhatsApp delivery is configured.
func (c *Config) DeliveryEnabled() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken.IsSet() && c.Twilio.SupervisorTo != ""
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.WebhookRateLimit == 0 {
		cfg.Server.WebhookRateLimit = 5
	}
	if cfg.Server.WebhookBurst == 0 {
		cfg.Server.WebhookBurst = 20
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}

	if cfg.Redis.DedupeTTL == 0 {
		cfg.Redis.DedupeTTL = Duration(24 * time.Hour)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == ProviderOpenAI {
		cfg.LLM.BaseURL = "https://api.cerebras.ai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1-8b"
	}
	if cfg.LLM.AnalysisProvider == "" {
		cfg.LLM.AnalysisProvider = ProviderAnthropic
	}
	if cfg.LLM.AnalysisModel == "" {
		cfg.LLM.AnalysisModel = "claude-3-5-sonnet-20241022"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(15 * time.Second)
	}

	if cfg.Twilio.From == "" {
		cfg.Twilio.From = "whatsapp:+14155238886"
	}

	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = Duration(20 * time.Second)
	}
	if cfg.Pipeline.Approver == "" {
		cfg.Pipeline.Approver = "supervisor"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "echolingo"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
	if cfg.Observability.ExportInterval == 0 {
		cfg.Observability.ExportInterval = Duration(15 * time.Second)
	}
}
