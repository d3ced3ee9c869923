package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"sequential-trader/internal/model"
)

// TapeFile is the on-disk fixture format:
//
//	{"markets": {"FED-CUT": [{"t": 1704067200, "p": 0.42}, ...]}}
type TapeFile struct {
	Markets map[string][]model.TapePoint `json:"markets"`
}

// FileSource serves tape from a recorded fixture, so runs are reproducible
// without network access.
type FileSource struct {
	markets map[string][]model.TapePoint
}

func LoadTapeFile(path string) (*TapeFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tape file: %w", err)
	}
	var tf TapeFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse tape file: %w", err)
	}
	return &tf, nil
}

func NewFileSource(tf *TapeFile) *FileSource {
	markets := map[string][]model.TapePoint{}
	if tf != nil {
		for id, pts := range tf.Markets {
			sorted := append([]model.TapePoint(nil), pts...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].T.Before(sorted[j].T) })
			markets[id] = sorted
		}
	}
	return &FileSource{markets: markets}
}

// OpenFileSource loads path and wraps it in a FileSource.
func OpenFileSource(path string) (*FileSource, error) {
	tf, err := LoadTapeFile(path)
	if err != nil {
		return nil, err
	}
	return NewFileSource(tf), nil
}

func (f *FileSource) Name() string { return "file" }

// FetchTape returns the recorded points within [start, end].
// Unknown markets yield an empty tape, not an error.
func (f *FileSource) FetchTape(_ context.Context, marketID string, start, end time.Time) ([]model.TapePoint, error) {
	var out []model.TapePoint
	for _, p := range f.markets[marketID] {
		if p.T.Before(start) || p.T.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// MarketIDs lists the markets present in the fixture, sorted.
func (f *FileSource) MarketIDs() []string {
	ids := make([]string, 0, len(f.markets))
	for id := range f.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
