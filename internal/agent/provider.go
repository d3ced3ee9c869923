package agent

import (
	"context"
	"encoding/json"
)

// MockLLM answers every prompt with the same BUY 1 decision. Used for demos
// and tests that should not reach a real model.
type MockLLM struct {
	MarketID string

	// Calls counts Generate invocations.
	Calls int
	// LastUserPrompt and LastImages record the most recent request.
	LastUserPrompt string
	LastImages     []string
}

func (m *MockLLM) Name() string { return "mock" }

func (m *MockLLM) Generate(_ context.Context, _, userPrompt string, imageURLs []string) (string, error) {
	m.Calls++
	m.LastUserPrompt = userPrompt
	m.LastImages = imageURLs

	raw, err := json.Marshal(map[string]any{
		"action":             "BUY",
		"market_id":          m.MarketID,
		"quantity":           1,
		"belief_probability": 0.75,
		"reasoning":          "Positive fake news detected. Increasing position.",
		"journal":            "Day 1: Market seems bullish.",
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
