package agent

import (
	"fmt"
	"sort"
	"strings"

	"sequential-trader/internal/model"
)

const newsSnippetLen = 200

// SystemPrompt frames the trading task around one market question.
func SystemPrompt(question string) string {
	return fmt.Sprintf(`You are a Sequential Trader operating in a historical prediction market.
Your goal is to maximize your portfolio value over time by predicting the outcome of the following event:
"%s"

You are evaluated on your actions (BUY, SELL, HOLD).
You will receive:
1. The current date.
2. Market data (prices, volume).
3. Context/News available up to this date.
4. Your current portfolio state.
5. Your own reasoning from the previous day (Chain-of-Memory).

You must output your decision in strictly valid JSON format:
{
    "action": "BUY" | "SELL" | "HOLD",
    "market_id": "market_id_string",
    "quantity": integer,
    "belief_probability": float (0.0 to 1.0, probability of YES),
    "reasoning": "Concise explanation of your belief update and decision.",
    "journal": "Summary of key new information (data/news) from TODAY that is critical for future decisions. This will be passed to your future self."
}

Rules:
- You cannot buy more than you can afford (Check Cash).
- You cannot sell what you do not own (Check Positions).
- If you have no strong conviction, HOLD.
- Your "reasoning" will be passed to your future self. Use it to track your hypothesis.
`, question)
}

// UserPrompt renders one observation. It also returns every image URL found
// in the news, for multimodal providers.
func UserPrompt(obs model.Observation, question string) (string, []string) {
	var b strings.Builder

	fmt.Fprintf(&b, "\n--- CURRENT DATE: %s ---\n\n", obs.Timestamp.Format("2006-01-02"))

	b.WriteString("[PORTFOLIO]\n")
	fmt.Fprintf(&b, "Cash: $%.2f\n", obs.Portfolio.Cash)
	fmt.Fprintf(&b, "Positions: %s\n\n", formatPositions(obs.Portfolio.Positions))

	b.WriteString("[MARKET DATA]\n")
	for _, id := range sortedKeys(obs.MarketSnapshots) {
		s := obs.MarketSnapshots[id]
		fmt.Fprintf(&b, "ID: %s | Price: %.2f | Bid: %.2f | Ask: %.2f | Vol: %d\n",
			id, s.LastPrice, s.BestBid, s.BestAsk, s.Volume)
	}
	b.WriteString("\n")

	b.WriteString("[CONTEXT & NEWS]\n")
	var images []string
	if len(obs.News) == 0 {
		b.WriteString("No new news today.\n")
	}
	for _, n := range obs.News {
		fmt.Fprintf(&b, "[%s] %s: %s...\n", n.Source, n.Headline, truncate(n.Content, newsSnippetLen))
		if n.ImageURL != "" {
			images = append(images, n.ImageURL)
		}
	}
	b.WriteString("\n")

	prevReasoning := "None (Day 1)"
	if obs.PreviousReasoning != nil && *obs.PreviousReasoning != "" {
		prevReasoning = *obs.PreviousReasoning
	}
	prevJournal := "None"
	if obs.PreviousJournal != nil && *obs.PreviousJournal != "" {
		prevJournal = *obs.PreviousJournal
	}
	b.WriteString("[PREVIOUS REASONING]\n")
	fmt.Fprintf(&b, "(From Yesterday): \"%s\"\n\n", prevReasoning)
	b.WriteString("[PREVIOUS JOURNAL (CONTEXT MEMORY)]\n")
	fmt.Fprintf(&b, "(Summary of past days): \"%s\"\n\n", prevJournal)

	b.WriteString("[INSTRUCTION]\n")
	fmt.Fprintf(&b, "Analyze the new information regarding \"%s\".\n", question)
	b.WriteString("Update your belief. Decide your action.\n")

	return b.String(), images
}

func formatPositions(pos map[string]int) string {
	if len(pos) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(pos))
	for _, id := range sortedKeys(pos) {
		parts = append(parts, fmt.Sprintf("%s: %d", id, pos[id]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
