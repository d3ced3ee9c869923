package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RegistryEntry is a market query resolved to a tradable token.
type RegistryEntry struct {
	Query      string    `json:"query"`
	TokenID    string    `json:"token_id"`
	Question   string    `json:"question,omitempty"`
	Source     string    `json:"source"` // e.g. "polymarket"
	ResolvedAt time.Time `json:"resolved_at"`
}

// MarketRegistry is the on-disk list of resolved markets.
type MarketRegistry struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Markets   []RegistryEntry `json:"markets"`
}

// LoadRegistry loads a registry from a JSON file
func LoadRegistry(filePath string) (*MarketRegistry, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var reg MarketRegistry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	return &reg, nil
}

// SaveRegistry writes a registry as indented JSON, creating parent directories.
func SaveRegistry(reg *MarketRegistry, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

// Lookup finds an entry by query, ignoring case and surrounding space.
func (r *MarketRegistry) Lookup(query string) (RegistryEntry, bool) {
	if r == nil {
		return RegistryEntry{}, false
	}
	q := normalizeQuery(query)
	for _, e := range r.Markets {
		if normalizeQuery(e.Query) == q {
			return e, true
		}
	}
	return RegistryEntry{}, false
}

// Upsert replaces the entry with the same query or appends a new one.
func (r *MarketRegistry) Upsert(e RegistryEntry) {
	q := normalizeQuery(e.Query)
	for i := range r.Markets {
		if normalizeQuery(r.Markets[i].Query) == q {
			r.Markets[i] = e
			return
		}
	}
	r.Markets = append(r.Markets, e)
}

// DefaultRegistryPath returns the registry file location.
func DefaultRegistryPath() string {
	if path := os.Getenv("MARKET_REGISTRY_FILE"); path != "" {
		return path
	}
	return "./data/markets.json"
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
