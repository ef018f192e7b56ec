package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"whatsapp:+15551234567", "whatsapp:********4567"},
		{"+15551234567", "********4567"},
		{"123", "***"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPhone(tt.in), tt.in)
	}
	assert.Equal(t, "from", Phone("from", "whatsapp:+15551234567").Key)
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{}), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	entry := zapcore.Entry{Time: time.Unix(0, 0), Message: "m"}

	tests := []struct {
		name   string
		key    string
		val    string
		redact bool
		marker string
	}{
		{"sensitive key", "auth_token", "abc", true, "[REDACTED]"},
		{"case insensitive key", "Password", "hunter2", true, "[REDACTED]"},
		{"bearer value", "header", "Bearer abc.def", true, "[REDACTED:pattern]"},
		{"plain value", "item", "rebar", false, "rebar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clone := enc.Clone()
			clone.AddString(tt.key, tt.val)
			buf, err := clone.EncodeEntry(entry, nil)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.marker)
			if tt.redact {
				assert.NotContains(t, buf.String(), tt.val)
			}
		})
	}
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{}), RedactionConfig{})
	require.NoError(t, err)
	enc.AddString("password", "visible")
	buf, err := enc.EncodeEntry(zapcore.Entry{}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "visible")
}

func TestRedactingEncoder_EntryFields(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"}), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "twilio send"}, []zapcore.Field{
		zap.String("auth_token", "tok-123"),
		zap.String("note", "api_key=sk-999"),
		Phone("to", "whatsapp:+15551234567"),
		zap.Int("attempt", 2),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "tok-123")
	assert.NotContains(t, out, "sk-999")
	assert.NotContains(t, out, "5551234567")
	assert.Contains(t, out, `"to":"whatsapp:********4567"`)
	assert.Contains(t, out, `"attempt":2`)
}
