package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a batch file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks a format from a file extension; JSON is the default.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// SplitBatch splits a batch document (a JSON array or YAML sequence of
// records) into one raw JSON document per record.
func SplitBatch(data []byte, format Format) ([]json.RawMessage, error) {
	switch format {
	case FormatYAML:
		return splitYAML(data)
	case FormatJSON, "":
		return splitJSON(data)
	default:
		return nil, fmt.Errorf("unsupported batch format %q", format)
	}
}

// ReadBatchFile reads and splits a batch file.
func ReadBatchFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	records, err := SplitBatch(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	return records, nil
}

func splitJSON(data []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array of records: %w", err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

func splitYAML(data []byte) ([]json.RawMessage, error) {
	var docs []any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("batch must be a YAML sequence of records: %w", err)
	}
	return ToRawRecords(docs)
}

// ToRawRecords re-encodes decoded YAML values as JSON records.
func ToRawRecords(docs []any) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, 0, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, raw)
	}
	return records, nil
}
