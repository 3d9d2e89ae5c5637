package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"stakerLedger/internal/model"
)

// JSONLWriter appends values to a JSONL file.
type JSONLWriter struct {
	path string
	mu   sync.Mutex
}

func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

// Path returns the output file path.
func (w *JSONLWriter) Path() string {
	return w.path
}

// Append writes each value as one JSON line.
func (w *JSONLWriter) Append(values ...interface{}) error {
	if len(values) == 0 {
		return nil
	}

	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, value := range values {
		line, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// JSONLSink appends ledger notifications to a JSONL file.
type JSONLSink struct {
	writer *JSONLWriter
}

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{writer: NewJSONLWriter(path)}
}

func (s *JSONLSink) Publish(_ context.Context, ev model.Event) error {
	return s.writer.Append(ev)
}

func (s *JSONLSink) Close() error { return nil }
