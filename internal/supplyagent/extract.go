package supplyagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
)

const extractionPrompt = `You are a construction supply extraction assistant. Extract supply request details from the message.
Respond ONLY with a JSON object:
{
  "item": "the item name in English",
  "quantity": number or null if not specified,
  "unit": "unit of measurement" or null if not specified,
  "urgency": "normal" | "high" | "critical"
}`

// UnknownItem is used when the model names no item.
const UnknownItem = "unknown"

// Extractor reads supply entities out of a message with a language model.
type Extractor struct {
	llm llm.Completer
}

// NewExtractor returns an Extractor using c.
func NewExtractor(c llm.Completer) *Extractor {
	return &Extractor{llm: c}
}

// Extract asks the model for {item, quantity, unit, urgency} and
// normalizes the answer. Any failure is a stage error.
func (e *Extractor) Extract(ctx context.Context, s State) ExtractResult {
	user := fmt.Sprintf("Spanish: %s\nEnglish: %s", s.SpanishText, s.EnglishText)
	text, err := e.llm.Complete(ctx, extractionPrompt, user, llm.WithTemperature(0.1), llm.WithMaxTokens(200))
	if err != nil {
		return ExtractResult{Err: supply.NewError("supplyagent.extract", supply.ErrStage, err)}
	}
	entities, err := ParseEntities(text)
	if err != nil {
		return ExtractResult{Err: supply.NewError("supplyagent.extract", supply.ErrStage, err)}
	}
	return ExtractResult{Entities: entities}
}

type rawEntities struct {
	Item     string          `json:"item"`
	Quantity json.RawMessage `json:"quantity"`
	Unit     string          `json:"unit"`
	Urgency  string          `json:"urgency"`
}

// ParseEntities decodes the first JSON object in a model response.
func ParseEntities(text string) (*supply.Entities, error) {
	obj := llm.FirstJSONObject(text)
	if obj == "" {
		return nil, errors.New("entity extraction returned non-JSON response")
	}
	var raw rawEntities
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}

	item := strings.TrimSpace(raw.Item)
	if item == "" {
		item = UnknownItem
	}
	out := &supply.Entities{
		Item:           item,
		NormalizedItem: supply.NormalizeItem(item),
		Quantity:       parseQuantity(raw.Quantity),
		Urgency:        supply.ParseUrgency(raw.Urgency),
	}
	if unit := strings.TrimSpace(raw.Unit); unit != "" {
		out.Unit = supply.Ptr(supply.NormalizeUnit(unit))
	}
	return out, nil
}

// Numbers and numeric strings are accepted; anything else is absent.
func parseQuantity(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return positive(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return positive(f)
		}
	}
	return nil
}

// positive drops NaN, infinities and non-positive quantities.
func positive(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	return &f
}
