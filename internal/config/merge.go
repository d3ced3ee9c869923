package config

// Merge overlays non-zero fields from override onto base.
// This is used for API variations and CLI flag overrides.
func Merge(base, override Config) Config {
	out := base
	out.Run = mergeRun(base.Run, override.Run)
	out.Data = mergeData(base.Data, override.Data)
	out.News = mergeNews(base.News, override.News)
	out.Agent = mergeAgent(base.Agent, override.Agent)
	out.Output = mergeOutput(base.Output, override.Output)
	if len(override.Settlements) > 0 {
		out.Settlements = append([]SettlementConfig(nil), override.Settlements...)
	}
	return out
}

func mergeRun(base, o RunConfig) RunConfig {
	out := base
	if o.Ticker != "" {
		out.Ticker = o.Ticker
	}
	if o.Question != "" {
		out.Question = o.Question
	}
	if len(o.Markets) > 0 {
		out.Markets = append([]string(nil), o.Markets...)
	}
	if o.StartDate != "" {
		out.StartDate = o.StartDate
	}
	if o.EndDate != "" {
		out.EndDate = o.EndDate
	}
	if o.Days != 0 {
		out.Days = o.Days
	}
	if o.Step != "" {
		out.Step = o.Step
	}
	if o.InitialCash != 0 {
		out.InitialCash = o.InitialCash
	}
	return out
}

func mergeData(base, o DataConfig) DataConfig {
	out := base
	if o.Source != "" {
		out.Source = o.Source
	}
	if o.TapeFile != "" {
		out.TapeFile = o.TapeFile
	}
	if o.RegistryFile != "" {
		out.RegistryFile = o.RegistryFile
	}
	if o.Seed != 0 {
		out.Seed = o.Seed
	}
	if o.Window != "" {
		out.Window = o.Window
	}
	if o.Staleness != "" {
		out.Staleness = o.Staleness
	}
	if o.SpreadMode != "" {
		out.SpreadMode = o.SpreadMode
	}
	if o.SpreadOffset != 0 {
		out.SpreadOffset = o.SpreadOffset
	}
	if o.RateLimitPerMinute != 0 {
		out.RateLimitPerMinute = o.RateLimitPerMinute
	}
	return out
}

func mergeNews(base, o NewsConfig) NewsConfig {
	out := base
	if o.Sources != nil {
		out.Sources = append([]string{}, o.Sources...)
	}
	if o.QueryTemplate != "" {
		out.QueryTemplate = o.QueryTemplate
	}
	if o.RSSURL != "" {
		out.RSSURL = o.RSSURL
	}
	if o.MaxResults != 0 {
		out.MaxResults = o.MaxResults
	}
	if o.CacheTTL != "" {
		out.CacheTTL = o.CacheTTL
	}
	if o.Seed != 0 {
		out.Seed = o.Seed
	}
	if len(o.Rules) > 0 {
		out.Rules = o.Rules
	}
	return out
}

func mergeAgent(base, o AgentConfig) AgentConfig {
	out := base
	if o.Name != "" {
		out.Name = o.Name
	}
	// Mock can only be switched on by an override.
	if o.Mock {
		out.Mock = true
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.MaxTokens != 0 {
		out.MaxTokens = o.MaxTokens
	}
	if len(o.Params) > 0 {
		params := make(map[string]any, len(base.Params)+len(o.Params))
		for k, v := range base.Params {
			params[k] = v
		}
		for k, v := range o.Params {
			params[k] = v
		}
		out.Params = params
	}
	return out
}

func mergeOutput(base, o OutputConfig) OutputConfig {
	out := base
	if o.LogDir != "" {
		out.LogDir = o.LogDir
	}
	if o.CSV != "" {
		out.CSV = o.CSV
	}
	if o.DB != "" {
		out.DB = o.DB
	}
	return out
}
