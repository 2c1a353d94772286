package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mikey/reply-intel/internal/core"
)

// JSONWriter emits reports as indented JSON for other tools to consume
type JSONWriter struct {
	out io.Writer
}

// NewJSONWriter creates a new JSON report writer
func NewJSONWriter(out io.Writer) *JSONWriter {
	return &JSONWriter{out: out}
}

// WriteReport encodes the whole report
func (w *JSONWriter) WriteReport(_ context.Context, rep *core.Report) error {
	return w.encode(rep)
}

// WriteClassification encodes the reply alongside its verdict
func (w *JSONWriter) WriteClassification(_ context.Context, reply core.Reply, result core.ClassificationResult) error {
	return w.encode(struct {
		Reply  core.Reply                `json:"reply"`
		Result core.ClassificationResult `json:"result"`
	}{reply, result})
}

func (w *JSONWriter) encode(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
