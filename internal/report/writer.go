package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/imgshare/internal/model"
)

// GroupWriter writes a grouping report.
type GroupWriter interface {
	// WriteGroups outputs groups in the order given and returns the number
	// of bytes written.
	WriteGroups(groups []model.DomainGroup) (int, error)
}

// MultiWriter writes the same report to several GroupWriters, such as the
// terminal and a file.
type MultiWriter struct {
	writers []GroupWriter
}

// NewMultiWriter creates a GroupWriter that writes to all writers.
func NewMultiWriter(writers ...GroupWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteGroups writes to every writer and stops on the first error.
func (m *MultiWriter) WriteGroups(groups []model.DomainGroup) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteGroups(groups)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// CreateFile creates a report file readable only by the owner, creating
// parent directories as needed.
func CreateFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}
