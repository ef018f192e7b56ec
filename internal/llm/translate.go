package llm

import (
	"context"
	"fmt"

	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
)

// Language is an ISO 639-1 code.
type Language string

const (
	Spanish Language = "es"
	English Language = "en"
)

const (
	spanishToEnglishPrompt = "You are a professional translator. Translate the following Mexican Spanish construction site communication into clear, professional English suitable for a construction supervisor."
	englishToSpanishPrompt = "You are a professional translator. Translate the following English construction site communication into clear, colloquial Mexican Spanish suitable for a construction worker."
)

// Translator converts construction-site messages between Spanish and
// English.
type Translator struct {
	c Completer
}

// NewTranslator returns a Translator backed by c.
func NewTranslator(c Completer) *Translator {
	return &Translator{c: c}
}

// Translate returns text in language to. Identical languages and blank
// input are returned unchanged. Failures wrap supply.ErrTranslation.
func (t *Translator) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	if from == to || text == "" {
		return text, nil
	}

	var system string
	switch {
	case from == Spanish && to == English:
		system = spanishToEnglishPrompt
	case from == English && to == Spanish:
		system = englishToSpanishPrompt
	default:
		return "", supply.NewError("translate", supply.ErrTranslation,
			fmt.Errorf("unsupported language pair %s->%s", from, to))
	}

	out, err := t.c.Complete(ctx, system, text, WithTemperature(0.3), WithMaxTokens(500))
	if err != nil {
		return "", supply.NewError("translate", supply.ErrTranslation, err)
	}
	return out, nil
}
