package approval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		body string
		want Parsed
	}{
		{"APPROVE", Parsed{Command: Approve}},
		{"  approve  ", Parsed{Command: Approve}},
		{"Approve REQ-A1B2", Parsed{Command: Approve, Ref: "a1b2"}},
		{"MODIFY 300", Parsed{Command: Modify, Quantity: 300}},
		{"modify 300 REQ-abcd", Parsed{Command: Modify, Ref: "abcd", Quantity: 300}},
		{"MODIFY REQ-abcd 45", Parsed{Command: Modify, Ref: "abcd", Quantity: 45}},
		{"REJECT", Parsed{Command: Reject}},
		{"reject too expensive REQ-0f9e, use stock", Parsed{Command: Reject, Ref: "0f9e", Args: "too expensive , use stock"}},
		{"REJECT Already over budget.", Parsed{Command: Reject, Args: "Already over budget."}},
		{"ask which size?", Parsed{Command: Ask, Args: "which size?"}},
		{"ASK REQ-1234 which size?\nand color?", Parsed{Command: Ask, Ref: "1234", Args: "which size?\nand color?"}},
		{"ASK about REQ-12345", Parsed{Command: Ask, Args: "about REQ-12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := Parse(tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_NoCommand(t *testing.T) {
	for _, body := range []string{
		"",
		"Thanks, looks good",
		"approved",
		"APPROVEREQ-a1b2",
		"Please approve",
		"asking around",
	} {
		t.Run(body, func(t *testing.T) {
			_, err := Parse(body)
			assert.ErrorIs(t, err, ErrNoCommand)
		})
	}
}

func TestParse_ModifyValidation(t *testing.T) {
	for _, body := range []string{"MODIFY", "MODIFY abc", "MODIFY 0", "MODIFY -5", "MODIFY 2.5", "MODIFY 300 bags", "MODIFY REQ-abcd"} {
		t.Run(body, func(t *testing.T) {
			_, err := Parse(body)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, ModifyUsage, verr.Message)
			assert.Equal(t, Modify, verr.Command)
		})
	}
}

func TestParse_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("MODIFY n parses to n for positive n", prop.ForAll(
		func(n int, ref string) bool {
			p, err := Parse(fmt.Sprintf("modify %d REQ-%s", n, ref))
			return err == nil && p.Quantity == n && p.Ref == ref && p.Command == Modify && p.Args == ""
		},
		gen.IntRange(1, 1_000_000),
		gen.RegexMatch(`[0-9a-f]{4}`),
	))

	properties.Property("reference is lower-cased and removed", prop.ForAll(
		func(ref, reason string) bool {
			p, err := Parse("REJECT " + reason + " REQ-" + ref)
			return err == nil && p.Ref == toLower(ref) && p.Args == reason
		},
		gen.RegexMatch(`[0-9A-F]{4}`),
		gen.RegexMatch(`[a-z]{1,12}`),
	))

	properties.TestingRun(t)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
