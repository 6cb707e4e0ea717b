package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casperEvents/internal/ces"
	"casperEvents/internal/clvalue"
	"casperEvents/internal/config"
	"casperEvents/internal/indexer"
	"casperEvents/internal/model"
)

func newDecodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw event records offline against a schema file",
		Long: "Reads JSONL lines carrying a hex \"raw\" record (as written by sync) or bare hex lines,\n" +
			"decodes them against --schema-file and writes event records and decode errors as JSONL.",
		RunE: runDecode,
	}
	cmd.Flags().String("in", "", "input JSONL or hex lines")
	cmd.Flags().String("out", "./data/decoded_events.jsonl", "output event records JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	return cmd
}

type rawRecord struct {
	ContractHash  string `json:"contract_hash"`
	EventIndex    uint64 `json:"event_index"`
	Raw           string `json:"raw"`
	ExecutionHash string `json:"execution_hash"`
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	errorsPath, _ := cmd.Flags().GetString("errors")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.SchemaFile == "" {
		return fmt.Errorf("schema file is required")
	}
	if in == "" {
		return fmt.Errorf("input path is required")
	}

	decoder := &clvalue.Decoder{MaxDepth: cfg.MaxDepth, AllowAny: cfg.AllowAny}
	schemas, err := ces.LoadSchemaFile(cfg.SchemaFile, decoder)
	if err != nil {
		return err
	}

	inputFile, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(errorsPath, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("schema_file", cfg.SchemaFile),
		zap.String("in", in),
		zap.String("out", out),
		zap.String("errors", errorsPath),
	)

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, decoded, failed uint64
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		index := total
		total++

		record, raw, err := parseRawLine(line, index)
		if err == nil {
			var ev ces.Event
			ev, err = decodeRecord(decoder, raw, schemas, record.EventIndex)
			if err == nil {
				var rec model.EventRecord
				rec, err = indexer.NewEventRecord(record.ContractHash, ev, time.Now())
				if err == nil {
					rec.ExecutionHash = record.ExecutionHash
					if err := outWriter.Write(rec); err != nil {
						return err
					}
					decoded++
					continue
				}
			}
		}

		failed++
		writeDecodeError(errWriter, indexer.NewDecodeError(record.ContractHash, record.EventIndex, err, time.Now()))
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("decode complete",
		zap.Uint64("total", total),
		zap.Uint64("decoded", decoded),
		zap.Uint64("failed", failed),
	)

	return nil
}

// parseRawLine accepts a JSON object with a hex "raw" field or a bare hex line. Bare lines
// are numbered by their position in the input.
func parseRawLine(line []byte, position uint64) (rawRecord, []byte, error) {
	record := rawRecord{EventIndex: position}
	text := string(line)
	if line[0] == '{' {
		if err := json.Unmarshal(line, &record); err != nil {
			return record, nil, fmt.Errorf("parse line %d: %w", position+1, err)
		}
		text = record.Raw
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
	if err != nil {
		return record, nil, fmt.Errorf("decode hex on line %d: %w", position+1, err)
	}
	return record, raw, nil
}

func decodeRecord(decoder *clvalue.Decoder, raw []byte, schemas ces.Schemas, index uint64) (ces.Event, error) {
	f := &ces.Fetcher{Decoder: decoder}
	ev, rest, err := f.ParseEvent(raw, schemas)
	if err != nil {
		return ces.Event{}, err
	}
	if len(rest) != 0 {
		return ces.Event{}, fmt.Errorf("event %d: %d trailing bytes", index, len(rest))
	}
	ev.Index = index
	return ev, nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
