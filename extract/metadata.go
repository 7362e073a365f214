package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	iris "github.com/irislabs/iris"
)

// publishedDateSources are checked in order; the first hit wins.
var publishedDateSources = []string{
	`meta[property="article:published_time"]`,
	`meta[name="date"]`,
	`meta[name="pubdate"]`,
	`meta[name="publishdate"]`,
	`meta[itemprop="datePublished"]`,
}

// Metadata extracts page metadata. Every field is best-effort; a page with
// none of the markup yields a zero PageMetadata.
func (e *Extractor) Metadata(htmlStr, pageURL string) *iris.PageMetadata {
	meta := &iris.PageMetadata{}
	if htmlStr == "" {
		return meta
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		e.log.Debug("metadata parse failed", "error", err)
		return meta
	}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.Description = metaContent(doc, `meta[name="description"]`)
	meta.Author = metaContent(doc, `meta[name="author"]`)
	meta.OGTitle = metaContent(doc, `meta[property="og:title"]`)
	meta.OGDescription = metaContent(doc, `meta[property="og:description"]`)
	meta.OGImage = resolveURL(metaContent(doc, `meta[property="og:image"]`), pageURL)

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Language = strings.TrimSpace(lang)
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.CanonicalURL = resolveURL(strings.TrimSpace(href), pageURL)
	}
	meta.PublishedDate = publishedDate(doc)

	return meta
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func publishedDate(doc *goquery.Document) string {
	for _, selector := range publishedDateSources {
		if content := metaContent(doc, selector); content != "" {
			return content
		}
	}
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(dt)
	}
	return ""
}

// resolveURL makes a possibly relative URL absolute against the page URL.
func resolveURL(ref, pageURL string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return resolved.String()
}
