package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ECHOLINGO_"

const maxConfigFileSize = 1024 * 1024

// wellKnownEnv maps the unprefixed variable names used by existing
// deployments (.env files) onto config keys. Prefixed variables win.
var wellKnownEnv = map[string]string{
	"CEREBRAS_API_KEY":     "llm.api_key",
	"ANTHROPIC_API_KEY":    "llm.analysis_api_key",
	"TWILIO_ACCOUNT_SID":   "twilio.account_sid",
	"TWILIO_AUTH_TOKEN":    "twilio.auth_token",
	"TWILIO_WHATSAPP_FROM": "twilio.from",
	"SUPERVISOR_WHATSAPP":  "twilio.supervisor_to",
	"TWILIO_WEBHOOK_URL":   "server.public_url",
	"DATABASE_URL":         "store.dsn",
	"REDIS_ADDR":           "redis.addr",
	"NATS_URL":             "nats.url",
}

// Load reads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Precedence (highest to lowest):
//  1. ECHOLINGO_ environment variables (ECHOLINGO_SERVER_HTTP_PORT -> server.http_port)
//  2. Well-known unprefixed variables (TWILIO_AUTH_TOKEN, CEREBRAS_API_KEY, ...)
//  3. YAML file at configPath (skipped when configPath is empty)
//  4. Defaults
//
// The YAML file may hold credentials, so it must be 0600 or 0400 and
// no larger than 1MB.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	for name, key := range wellKnownEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", name, err)
			}
		}
	}

	// Split on the first underscore only: section.field_name.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Opened once and validated through the descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
