// Copyright (c) Microsoft. All rights reserved.

package agentkit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Record is the flat export form of a [Turn].
type Record struct {
	Sequence  int       `json:"sequence"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// NewRecord flattens a turn. The role is the turn kind, so tool calls and
// agent messages stay distinguishable after export.
func NewRecord(t Turn) Record {
	return Record{
		Sequence:  t.Sequence,
		Role:      string(t.Kind),
		Timestamp: t.Timestamp.UTC(),
		Content:   t.Content(),
	}
}

// Export returns the full transcript as flat records.
func (s *Session) Export() []Record {
	turns := s.FullTranscript()
	out := make([]Record, len(turns))
	for i, t := range turns {
		out[i] = NewRecord(t)
	}
	return out
}

// WriteJSONL writes the full transcript as one JSON record per line.
func (s *Session) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, rec := range s.Export() {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("export session %s: %w", s.id, err)
		}
	}
	return nil
}

// ExportFile writes the transcript as JSONL to path, creating parent
// directories as needed.
func (s *Session) ExportFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export session %s: %w", s.id, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export session %s: %w", s.id, err)
	}
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("export session %s: %w", s.id, err)
	}
	return f.Close()
}

// ReadJSONL decodes records written by [Session.WriteJSONL].
func ReadJSONL(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	var out []Record
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return out, fmt.Errorf("read transcript record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
