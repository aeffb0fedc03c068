// Package classify turns a conversation thread into the nine-field
// structured record the ledgers store. Classification is total: malformed
// model output degrades to defaults, it never surfaces as an error.
package classify

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/pqfbot/internal/chat"
)

// Classification is the structured analysis of one thread.
type Classification struct {
	Type        string `json:"type"`
	Product     string `json:"product"`
	Feature     string `json:"fitur"`
	Description string `json:"description"`
	Role        string `json:"role"`
	ReporterID  string `json:"reporter"`
	ResponderID string `json:"responder"`
	Severity    string `json:"severity"`
	Urgency     string `json:"urgency"`
}

// Result wraps a Classification with degradation info. Degraded means the
// model output could not be parsed and every field holds its fallback.
type Result struct {
	Classification
	Degraded bool
	Reason   string
}

// Completer is the single-prompt LLM call the classifier depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiCompleter implements Completer on a langchaingo Google AI model.
type GeminiCompleter struct {
	llm         llms.Model
	temperature float64
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string, temperature float64) (*GeminiCompleter, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	}
	llm, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{llm: llm, temperature: temperature}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(g.temperature))
}

// Classifier analyzes threads with a Completer.
type Classifier struct {
	completer Completer
}

func NewClassifier(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Option adjusts per-call classification defaults.
type Option func(*callOptions)

type callOptions struct {
	urgencyDefault string
}

// WithUrgencyDefault overrides the urgency backfill value for this call.
func WithUrgencyDefault(urgency string) Option {
	return func(o *callOptions) { o.urgencyDefault = urgency }
}

// Classify renders the thread into the analysis prompt, invokes the model
// and parses the response defensively. It always returns a fully populated
// Result.
func (c *Classifier) Classify(ctx context.Context, thread *chat.Thread, opts ...Option) Result {
	options := callOptions{urgencyDefault: "Low"}
	for _, opt := range opts {
		opt(&options)
	}

	raw, err := c.completer.Complete(ctx, buildPrompt(thread))
	if err != nil {
		log.Error().Err(err).Str("channel", thread.ChannelID).Str("ts", thread.RootTS).Msg("LLM completion failed")
		return fallbackResult(err.Error())
	}

	return parseResponse(raw, options.urgencyDefault)
}
