package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/imgshare/internal/model"
)

// JSONWriter outputs the grouping report as JSON.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printing with indentString.
	indent       bool
	indentString string

	now func() time.Time
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentString = "  "
	}
}

// WithClock sets the time source for the generated_at field.
func WithClock(now func() time.Time) JSONWriterOption {
	return func(w *JSONWriter) {
		w.now = now
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	GroupCount  int                 `json:"group_count"`
	Groups      []model.DomainGroup `json:"groups"`
}

// WriteGroups outputs groups as one JSON document.
func (w *JSONWriter) WriteGroups(groups []model.DomainGroup) (int, error) {
	if groups == nil {
		groups = []model.DomainGroup{}
	}
	doc := JSONReport{
		GeneratedAt: w.now().UTC(),
		GroupCount:  len(groups),
		Groups:      groups,
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(doc, "", w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	return w.output.Write(append(data, '\n'))
}
