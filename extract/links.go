package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	iris "github.com/irislabs/iris"
)

const maxLinkTextLen = 200

// skippedHrefPrefixes mark anchors that are not navigable pages.
var skippedHrefPrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// Links extracts every unique link from a page. Links are deduplicated by
// absolute URL keeping the first occurrence, and classified as external when
// their host differs from the page's.
func (e *Extractor) Links(htmlStr, pageURL string) []iris.ExtractedLink {
	if htmlStr == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		e.log.Debug("link parse failed", "error", err)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []iris.ExtractedLink
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || hasSkippedPrefix(href) {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		absolute := resolved.String()
		if seen[absolute] {
			return
		}
		seen[absolute] = true

		links = append(links, iris.ExtractedLink{
			URL:        absolute,
			Text:       truncateRunes(strings.TrimSpace(sel.Text()), maxLinkTextLen),
			IsExternal: resolved.Host != base.Host,
		})
	})

	return links
}

func hasSkippedPrefix(href string) bool {
	for _, prefix := range skippedHrefPrefixes {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}
