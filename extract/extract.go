// Package extract pulls clean text, metadata, links, and structured data out
// of rendered HTML.
package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/irislabs/iris/logger"
)

// Extractor extracts content from HTML documents.
type Extractor struct {
	maxContentLength int
	log              logger.Logger
}

// New creates an extractor. Text output is truncated to maxContentLength
// characters.
func New(maxContentLength int, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.Noop()
	}
	return &Extractor{maxContentLength: maxContentLength, log: log}
}

// Text extracts readable text from a page. Readability article extraction is
// tried first; pages it cannot handle fall back to a plain DOM walk.
func (e *Extractor) Text(htmlStr, pageURL string) string {
	if htmlStr == "" {
		return ""
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = nil
	}

	article, err := readability.FromReader(strings.NewReader(htmlStr), parsed)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return e.truncate(collapseBlankLines(text))
		}
	} else {
		e.log.Debug("readability extraction failed, using DOM fallback", "error", err)
	}

	return e.truncate(domText(htmlStr))
}

// skippedTags are elements whose text never counts as content.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"aside":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
}

// domText walks the DOM collecting text nodes, one line per node, skipping
// boilerplate elements.
func domText(htmlStr string) string {
	root, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if line := strings.TrimSpace(n.Data); line != "" {
				lines = append(lines, line)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(lines, "\n")
}

// collapseBlankLines trims each line and drops the empty ones.
func collapseBlankLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// truncate caps text at maxContentLength characters.
func (e *Extractor) truncate(text string) string {
	if e.maxContentLength <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) > e.maxContentLength {
		return string(runes[:e.maxContentLength])
	}
	return text
}
