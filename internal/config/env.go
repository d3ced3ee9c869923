package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Credentials are read from the environment, never from YAML.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	KalshiKey     string
	ExaKey        string
	TavilyKey     string
}

// LoadCredentials loads .env files (the working directory's .env when none are
// given) without overriding variables that are already set, then reads the
// environment. Missing files are ignored.
func LoadCredentials(files ...string) Credentials {
	_ = godotenv.Load(files...)
	return CredentialsFromEnv()
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		KalshiKey:     os.Getenv("KALSHI_API_KEY"),
		ExaKey:        os.Getenv("EXA_API_KEY"),
		TavilyKey:     os.Getenv("TAVILY_API_KEY"),
	}
}

// Check reports credentials that cfg cannot run without. Only the LLM agent
// outside mock mode has a hard requirement; news and market sources degrade
// to empty results without keys.
func (c Credentials) Check(cfg *Config) error {
	if cfg.Agent.Name == "llm" && !cfg.Agent.Mock && c.OpenAIKey == "" {
		return errors.New("OPENAI_API_KEY is required for the llm agent (use --mock or agent.mock to run offline)")
	}
	return nil
}
