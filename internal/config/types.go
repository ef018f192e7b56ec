package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration read from YAML or env. Both Go duration
// strings ("20s", "1m30s") and bare integers, taken as seconds, parse.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return fmt.Errorf("negative duration %q", raw)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", raw)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration converts to time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Secret holds a credential (auth token, API key, DSN). Its printed and
// JSON forms are masked; call Value for the real string.
type Secret string

const masked = "[REDACTED]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return masked
}

func (s Secret) GoString() string { return "config.Secret(" + masked + ")" }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(strings.TrimSpace(string(text)))
	return nil
}

// Value is the unmasked credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a non-empty credential was configured.
func (s Secret) IsSet() bool { return s != "" }
