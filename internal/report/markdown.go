package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imgshare/internal/model"
)

// maxChartSlices caps the pie chart; smaller groups are folded into "other".
const maxChartSlices = 8

// MarkdownWriter outputs the grouping report in GitHub-flavored Markdown
// using nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteGroups outputs groups in the order given.
func (w *MarkdownWriter) WriteGroups(groups []model.DomainGroup) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Shared Image Report")
	md.PlainText("")

	w.writeSummary(md, groups)
	w.writeGroups(md, groups)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by imgshare*")

	return len(md.String()), md.Build()
}

// writeSummary writes the overview table and chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, groups []model.DomainGroup) {
	md.H2("Summary")
	md.PlainText("")

	if len(groups) == 0 {
		md.Tip("No domains share identical images.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(groups))
	shared := 0
	for i, g := range groups {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(len(g.Domains)),
			strconv.Itoa(len(g.Hashes)),
			truncateString(strings.Join(g.Domains, ", "), 60),
		}
		shared += len(g.Hashes)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Group", "Domains", "Shared Images", "Members"},
		Rows:   rows,
	})
	md.PlainText("")
	md.Note(fmt.Sprintf("%d domain groups share %d identical images.", len(groups), shared))
	md.PlainText("")

	w.writePieChart(md, groups)
}

// writePieChart writes a mermaid pie chart of shared images per group.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, groups []model.DomainGroup) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Shared Images per Domain Group"),
		piechart.WithShowData(true),
	)

	var other uint64
	for i, g := range groups {
		if i >= maxChartSlices {
			other += uint64(len(g.Hashes))
			continue
		}
		chart.LabelAndIntValue(truncateString(strings.Join(g.Domains, " + "), 40), uint64(len(g.Hashes)))
	}
	if other > 0 {
		chart.LabelAndIntValue("other", other)
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeGroups writes one section per group.
func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, groups []model.DomainGroup) {
	if len(groups) == 0 {
		return
	}

	md.H2("Groups")
	md.PlainText("")

	for i, g := range groups {
		md.PlainText(fmt.Sprintf("### Group %d: %d identical images", i+1, len(g.Hashes)))
		md.PlainText("")
		md.PlainText("**Domains**")
		md.PlainText("")
		md.BulletList(g.Domains...)
		md.PlainText("")

		hashes := make([]string, len(g.Hashes))
		for j, h := range g.Hashes {
			hashes[j] = "`" + h + "`"
		}
		md.Details("Image hashes", strings.Join(hashes, "\n"))
		md.PlainText("")
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
