// Package report renders duplicate findings for people and tools.
//
// This package contains writers for the grouping report:
//   - TextWriter: the plain layout printed by the groups command
//   - MarkdownWriter: GitHub-flavored Markdown with a mermaid pie chart
//   - JSONWriter: structured output for other tools
//
// All of them implement GroupWriter. MatchWriter prints live match events
// during a scan; it is safe for concurrent use and never interleaves the
// events of two fingerprints.
package report
