package agent

// ParamInfo documents one policy parameter.
type ParamInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Default     interface{} `json:"default"`
}

// Descriptor documents a policy that can be selected in config.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ParamInfo `json:"parameters"`
}

// Catalog lists every selectable policy.
func Catalog() []Descriptor {
	return []Descriptor{
		{
			Name:        "llm",
			Description: "LLM agent. Reads market data, news and its own previous reasoning and journal each step.",
			Parameters: []ParamInfo{
				{Name: "model", Type: "string", Description: "Chat model name", Default: "gpt-4o"},
				{Name: "max_tokens", Type: "int", Description: "Completion token limit (0 = provider default)", Default: 0},
				{Name: "mock", Type: "bool", Description: "Use the canned mock LLM instead of a real model", Default: false},
			},
		},
		{
			Name:        "threshold",
			Description: "Price-band baseline. Buys when the ask is low, sells holdings when the bid is high.",
			Parameters: []ParamInfo{
				{Name: "buy_below", Type: "float", Description: "Buy when ask <= this price", Default: 0.3},
				{Name: "sell_above", Type: "float", Description: "Sell when bid >= this price", Default: 0.7},
				{Name: "quantity", Type: "int", Description: "Contracts per trade", Default: 10},
				{Name: "market_id", Type: "string", Description: "Market to trade (default: first market)", Default: ""},
			},
		},
		{
			Name:        "random",
			Description: "Random baseline. Picks BUY, SELL or HOLD uniformly on the first market.",
			Parameters: []ParamInfo{
				{Name: "seed", Type: "int", Description: "Random seed", Default: 42},
				{Name: "max_quantity", Type: "int", Description: "Upper bound on contracts per trade", Default: 10},
			},
		},
	}
}
