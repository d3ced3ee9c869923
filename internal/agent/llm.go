package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sequential-trader/internal/model"
)

// LLMProvider turns a system and user prompt into raw model text.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string, imageURLs []string) (string, error)
}

// SequentialLLM asks an LLM for one decision per step, feeding back its own
// reasoning and journal from the previous step.
type SequentialLLM struct {
	provider LLMProvider
	question string
	log      zerolog.Logger
}

func NewSequentialLLM(provider LLMProvider, question string, log zerolog.Logger) *SequentialLLM {
	return &SequentialLLM{
		provider: provider,
		question: question,
		log:      log.With().Str("component", "agent.llm").Str("provider", provider.Name()).Logger(),
	}
}

func (a *SequentialLLM) Name() string { return "llm" }

// llmDecision is the JSON object the model is told to produce.
type llmDecision struct {
	Action    string   `json:"action"`
	MarketID  string   `json:"market_id"`
	Quantity  *float64 `json:"quantity"`
	Belief    *float64 `json:"belief_probability"`
	Reasoning string   `json:"reasoning"`
	Journal   string   `json:"journal"`
	Price     *float64 `json:"price,omitempty"`
}

func (a *SequentialLLM) Act(ctx context.Context, obs model.Observation) (model.Action, error) {
	user, images := UserPrompt(obs, a.question)
	text, err := a.provider.Generate(ctx, SystemPrompt(a.question), user, images)
	if err != nil {
		return model.Action{}, fmt.Errorf("generate: %w", err)
	}
	a.log.Debug().Time("as_of", obs.Timestamp).Int("chars", len(text)).Msg("llm responded")
	return ParseDecision(text)
}

// ParseDecision decodes a model reply, tolerating markdown code fences.
func ParseDecision(text string) (model.Action, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var d llmDecision
	if err := json.Unmarshal([]byte(clean), &d); err != nil {
		return model.Action{}, fmt.Errorf("parse decision: %w", err)
	}

	t, err := model.ParseTradeType(d.Action)
	if err != nil {
		return model.Action{}, err
	}
	if d.Quantity == nil {
		return model.Action{}, fmt.Errorf("decision is missing quantity")
	}
	if d.Belief == nil {
		return model.Action{}, fmt.Errorf("decision is missing belief_probability")
	}
	if *d.Quantity != float64(int(*d.Quantity)) {
		return model.Action{}, fmt.Errorf("quantity %v is not an integer", *d.Quantity)
	}

	return model.Action{
		Type:      t,
		MarketID:  d.MarketID,
		Quantity:  int(*d.Quantity),
		Price:     d.Price,
		Reasoning: d.Reasoning,
		Journal:   d.Journal,
		Belief:    *d.Belief,
	}, nil
}
