package backtest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recorder receives every StepRecord in step order. A failing recorder is
// logged and skipped; it never stops the run.
type Recorder interface {
	Record(rec StepRecord) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(rec StepRecord) error

func (f RecorderFunc) Record(rec StepRecord) error { return f(rec) }

// MemoryRecorder keeps records in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []StepRecord
}

func (m *MemoryRecorder) Record(rec StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryRecorder) Records() []StepRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StepRecord, len(m.records))
	copy(out, m.records)
	return out
}

// JSONLRecorder appends one JSON record per line.
type JSONLRecorder struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewJSONLRecorder creates experiment_<timestamp>.jsonl inside dir.
func NewJSONLRecorder(dir string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("experiment_%s.jsonl", time.Now().Format("20060102_150405"))
	return OpenJSONL(filepath.Join(dir, name))
}

// OpenJSONL opens path for appending.
func OpenJSONL(path string) (*JSONLRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open step log: %w", err)
	}
	return &JSONLRecorder{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (j *JSONLRecorder) Path() string { return j.path }

// Record writes and flushes, so a crashed run still leaves complete lines.
func (j *JSONLRecorder) Record(rec StepRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal step %d: %w", rec.Index, err)
	}
	if _, err := j.w.Write(append(raw, '\n')); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *JSONLRecorder) Close() error {
	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

// ReadJSONL loads the records of a step log.
func ReadJSONL(path string) ([]StepRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open step log: %w", err)
	}
	defer f.Close()

	var out []StepRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec StepRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
