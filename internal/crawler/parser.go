package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// PageParser returns the candidate image references of an HTML page, in
// document order. References are absolute, resolved against baseURL.
type PageParser interface {
	ImageReferences(baseURL string, body io.Reader) ([]string, error)
}

// ImageParser is the PageParser used by imgshare. It collects <img src>,
// lazy-loading <img data-src> and the first candidate of <img srcset> and
// <source srcset>. Duplicates are dropped; the first occurrence keeps its
// position.
type ImageParser struct{}

var _ PageParser = ImageParser{}

// NewImageParser creates an ImageParser.
func NewImageParser() ImageParser {
	return ImageParser{}
}

// ImageReferences parses body and returns its image references.
func (ImageParser) ImageReferences(baseURL string, body io.Reader) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	// <base href> changes how relative references resolve.
	if href := findBaseHref(doc); href != "" {
		if u, err := url.Parse(href); err == nil {
			base = base.ResolveReference(u)
		}
	}

	refs := make([]string, 0)
	seen := make(map[string]bool)
	add := func(raw string) {
		resolved := resolveURL(base, raw)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		refs = append(refs, resolved)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				add(getAttr(n, "src"))
				add(getAttr(n, "data-src"))
				add(firstSrcsetCandidate(getAttr(n, "srcset")))
			case "source":
				add(firstSrcsetCandidate(getAttr(n, "srcset")))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return refs, nil
}

// findBaseHref returns the href of the first <base> element, if any.
func findBaseHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		return getAttr(n, "href")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBaseHref(c); href != "" {
			return href
		}
	}
	return ""
}

// firstSrcsetCandidate returns the URL of the first "url [descriptor]"
// entry of a srcset attribute.
func firstSrcsetCandidate(srcset string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(srcset), ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// resolveURL resolves href against base. Inline and script references, and
// anything that is not http(s) after resolution, yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "blob:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
