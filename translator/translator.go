package translator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spektr-org/flightquery/schema"
)

// Translator turns one question into a validated Result with a single
// Generate call. It holds no conversation memory and never retries.
type Translator struct {
	gen      Generator
	registry func() *schema.Registry
	now      func() time.Time
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithClock overrides the clock used for the prompt's current time.
func WithClock(now func() time.Time) TranslatorOption {
	return func(t *Translator) { t.now = now }
}

// WithRegistrySource makes the Translator read the registry on every call,
// so region overlays reloaded at runtime reach the prompt and the validator.
func WithRegistrySource(src func() *schema.Registry) TranslatorOption {
	return func(t *Translator) { t.registry = src }
}

// New creates a Translator over gen, validating against reg.
func New(gen Generator, reg *schema.Registry, opts ...TranslatorOption) *Translator {
	t := &Translator{
		gen:      gen,
		registry: func() *schema.Registry { return reg },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate runs one question through the generator.
//
// Errors:
//   - *TranslationError when the call fails or the reply holds no JSON object
//   - engine.ErrInvalidFilterSpec (as *engine.InvalidFilterSpecError) when the
//     object's filters violate the registry
func (t *Translator) Translate(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &TranslationError{Query: query, Err: errors.New("empty query")}
	}

	reg := t.registry()
	system := BuildPrompt(reg, t.now())

	log.Printf("🔄 Translator: query=\"%s\" registry=\"%s\"", truncate(query, 80), reg.Name)

	reply, err := t.gen.Generate(ctx, system, query)
	if err != nil {
		log.Printf("⚠️ Translator: generator failed: %v", err)
		return nil, &TranslationError{Query: query, Err: err}
	}

	obj, err := extractObject(reply)
	if err != nil {
		log.Printf("⚠️ Translator: unparseable reply: %s", truncate(reply, 120))
		return nil, &TranslationError{Query: query, Reply: reply, Err: err}
	}

	res, err := decodeResult(obj, reg)
	if err != nil {
		log.Printf("⚠️ Translator: rejected reply: %v", err)
		return nil, err
	}

	log.Printf("✅ Translator: filters=%d aggregation=%s", len(res.Filters), aggregationLabel(res))
	return res, nil
}

func aggregationLabel(res *Result) string {
	if res.Aggregation == nil {
		return "none"
	}
	if res.Aggregation.Column == "" {
		return res.Aggregation.Type
	}
	return fmt.Sprintf("%s(%s)", res.Aggregation.Type, res.Aggregation.Column)
}
