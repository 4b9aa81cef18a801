// Package crawler extracts candidate image references from one HTML page.
//
// It does not follow links: a page target yields the images it references
// directly and nothing else. ImageParser walks the document with
// golang.org/x/net/html, which tolerates the malformed markup common on
// small sites and hidden services.
//
// # Usage
//
//	refs, err := crawler.NewImageParser().ImageReferences("http://example.com/", body)
package crawler
