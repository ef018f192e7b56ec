package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
)

// ActionSummaryFallback is shown to the worker when no summary could be
// produced.
const ActionSummaryFallback = "Mensaje del supervisor recibido."

var urgentKeywords = regexp.MustCompile(`(?i)emergencia|peligro|accidente|lesión`)

// IsUrgent reports whether Spanish text mentions an emergency, danger,
// accident or injury.
func IsUrgent(spanish string) bool {
	return urgentKeywords.MatchString(spanish)
}

// UrgencyOf maps the urgent-keyword check to an Urgency.
func UrgencyOf(spanish string) supply.Urgency {
	if IsUrgent(spanish) {
		return supply.UrgencyHigh
	}
	return supply.UrgencyNormal
}

// Analysis is the categorized, supervisor-ready form of a worker message.
type Analysis struct {
	Category  string         `json:"category"`
	Urgency   supply.Urgency `json:"urgency"`
	Formatted string         `json:"englishFormatted"`
}

const analysisPrompt = `Analyze this construction site communication and provide:
1. Category: one of [delay_report, clarification, completion, safety, material_need]
2. A professionally formatted English message suitable for a construction supervisor

Original Spanish: %q
English Translation: %q

Respond in JSON format:
{
  "category": "delay_report|clarification|completion|safety|material_need",
  "englishFormatted": "Professional English message formatted for supervisor communication"
}`

const actionItemsPrompt = `Extract and summarize the key action items from this supervisor message in bullet points. Format as a concise Spanish summary suitable for a construction worker.

Message: %q

Respond with a brief Spanish summary of action items.`

var knownCategories = map[string]bool{
	supply.CategoryDelayReport:   true,
	supply.CategoryClarification: true,
	supply.CategoryCompletion:    true,
	supply.CategorySafety:        true,
	supply.CategoryMaterialNeed:  true,
}

// Analyzer categorizes worker messages and summarizes supervisor replies.
type Analyzer struct {
	c Completer
}

// NewAnalyzer returns an Analyzer backed by c.
func NewAnalyzer(c Completer) *Analyzer {
	return &Analyzer{c: c}
}

// Analyze categorizes a worker message. Urgency comes from the keyword
// check, not the model. Unknown categories become clarification and an
// empty formatted message falls back to english. Call or decode failures
// wrap supply.ErrAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, spanish, english string) (Analysis, error) {
	text, err := a.c.Complete(ctx, "", fmt.Sprintf(analysisPrompt, spanish, english), WithMaxTokens(1000))
	if err != nil {
		return Analysis{}, supply.NewError("analyze", supply.ErrAnalysis, err)
	}

	raw := FirstJSONObject(text)
	if raw == "" {
		return Analysis{}, supply.NewError("analyze", supply.ErrAnalysis, errors.New("no JSON object in response"))
	}
	var parsed struct {
		Category         string `json:"category"`
		EnglishFormatted string `json:"englishFormatted"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Analysis{}, supply.NewError("analyze", supply.ErrAnalysis, err)
	}

	out := Analysis{
		Category:  parsed.Category,
		Urgency:   UrgencyOf(spanish),
		Formatted: parsed.EnglishFormatted,
	}
	if !knownCategories[out.Category] {
		out.Category = supply.CategoryClarification
	}
	if out.Formatted == "" {
		out.Formatted = english
	}
	return out, nil
}

// SummarizeActions returns a short Spanish summary of the action items
// in an English supervisor message. It never fails: any error yields
// ActionSummaryFallback.
func (a *Analyzer) SummarizeActions(ctx context.Context, english string) string {
	text, err := a.c.Complete(ctx, "", fmt.Sprintf(actionItemsPrompt, english), WithMaxTokens(500))
	if err != nil || text == "" {
		return ActionSummaryFallback
	}
	return text
}
