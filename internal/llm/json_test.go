package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"item":"rebar"}`, `{"item":"rebar"}`},
		{"prose around", "Here you go:\n{\"item\": \"rebar\"}\nHope that helps.", `{"item": "rebar"}`},
		{"nested", `x {"a": {"b": 1}} y`, `{"a": {"b": 1}}`},
		{"brace in string", `{"note": "use } carefully"}`, `{"note": "use } carefully"}`},
		{"escaped quote", `{"note": "say \"}\" now"} trailing`, `{"note": "say \"}\" now"}`},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`},
		{"none", "no json here", ""},
		{"unterminated", `{"a": 1`, ""},
		{"fenced", "```json\n{\"quantity\": 20}\n```", `{"quantity": 20}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstJSONObject(tt.in))
		})
	}
}
