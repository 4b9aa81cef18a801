package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/imgshare/internal/model"
)

// separatorWidth is the width of the dashed lines around each group.
const separatorWidth = 80

// TextWriter outputs the grouping report as plain text:
//
//	Found 2 domain groups sharing identical images:
//
//	--------------------------------------------------------------------------------
//	2 identical images between the domains:
//	image hash: 3a7bd3e2...
//	image hash: 9f86d081...
//	Domains:
//	siteA
//	siteB
//	--------------------------------------------------------------------------------
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// WriteGroups outputs groups in the order given.
func (w *TextWriter) WriteGroups(groups []model.DomainGroup) (int, error) {
	var sb strings.Builder
	separator := strings.Repeat("-", separatorWidth)

	fmt.Fprintf(&sb, "\nFound %d domain groups sharing identical images:\n\n", len(groups))
	for _, g := range groups {
		sb.WriteString(separator + "\n")
		fmt.Fprintf(&sb, "%d identical images between the domains:\n", len(g.Hashes))
		for _, h := range g.Hashes {
			fmt.Fprintf(&sb, "image hash: %s\n", h)
		}
		sb.WriteString("Domains:\n")
		for _, d := range g.Domains {
			sb.WriteString(d + "\n")
		}
		sb.WriteString(separator + "\n")
	}

	return io.WriteString(w.output, sb.String())
}
