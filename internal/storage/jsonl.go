package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"casperEvents/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

var (
	_ Storage   = (*JsonlStorage)(nil)
	_ ErrorSink = (*JsonlStorage)(nil)
)

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// Path returns the output file path.
func (s *JsonlStorage) Path() string { return s.path }

// PutEventBatch appends a batch of event records as JSON lines.
func (s *JsonlStorage) PutEventBatch(ctx context.Context, events []model.EventRecord) error {
	lines := make([]interface{}, 0, len(events))
	for _, record := range events {
		lines = append(lines, record)
	}
	return s.appendLines(ctx, lines)
}

// PutDecodeErrors appends decode failures as JSON lines.
func (s *JsonlStorage) PutDecodeErrors(ctx context.Context, failures []model.DecodeError) error {
	lines := make([]interface{}, 0, len(failures))
	for _, failure := range failures {
		lines = append(lines, failure)
	}
	return s.appendLines(ctx, lines)
}

func (s *JsonlStorage) appendLines(ctx context.Context, lines []interface{}) error {
	if len(lines) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range lines {
		line, err := json.Marshal(record)
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

