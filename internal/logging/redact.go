package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedKey     = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// Phone logs a WhatsApp address with all but the last four digits
// masked.
func Phone(key, number string) zap.Field {
	return zap.String(key, MaskPhone(number))
}

// MaskPhone keeps any channel prefix ("whatsapp:") and the last four digits.
func MaskPhone(number string) string {
	prefix := ""
	if i := strings.LastIndex(number, ":"); i >= 0 {
		prefix, number = number[:i+1], number[i+1:]
	}
	if len(number) <= 4 {
		return prefix + strings.Repeat("*", len(number))
	}
	return prefix + strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// RedactingEncoder masks fields whose key is listed in RedactionConfig
// and string values matching one of its patterns. It covers both
// logger-scoped fields (With) and per-entry fields.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base. A disabled config passes fields through.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	e := &RedactingEncoder{Encoder: base, keys: map[string]struct{}{}}
	if !cfg.Enabled {
		return e, nil
	}
	for _, k := range cfg.Fields {
		e.keys[strings.ToLower(k)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	return e, nil
}

func (e *RedactingEncoder) sensitiveKey(key string) bool {
	_, ok := e.keys[strings.ToLower(key)]
	return ok
}

func (e *RedactingEncoder) maskValue(val string) (string, bool) {
	for _, re := range e.patterns {
		if re.MatchString(val) {
			return redactedPattern, true
		}
	}
	return val, false
}

func (e *RedactingEncoder) redact(f zapcore.Field) zapcore.Field {
	if e.sensitiveKey(f.Key) {
		return zap.String(f.Key, redactedKey)
	}
	if f.Type == zapcore.StringType {
		if v, masked := e.maskValue(f.String); masked {
			return zap.String(f.Key, v)
		}
	}
	return f
}

// EncodeEntry redacts per-entry fields before handing them to the base
// encoder.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = e.redact(f)
	}
	return e.Encoder.EncodeEntry(ent, out)
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitiveKey(key) {
		val = redactedKey
	} else {
		val, _ = e.maskValue(val)
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), keys: e.keys, patterns: e.patterns}
}
