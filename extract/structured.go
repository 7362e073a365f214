package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	iris "github.com/irislabs/iris"
)

// StructuredData extracts JSON-LD blocks and Schema.org type names from a
// page. Returns nil when the page carries neither.
func (e *Extractor) StructuredData(htmlStr string) *iris.StructuredData {
	if htmlStr == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		e.log.Debug("structured data parse failed", "error", err)
		return nil
	}

	var blocks []map[string]any
	typeSet := make(map[string]bool)

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			// Malformed blocks are skipped, not fatal.
			return
		}

		switch v := value.(type) {
		case map[string]any:
			blocks = append(blocks, v)
			collectTypes(v, typeSet)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					blocks = append(blocks, m)
					collectTypes(m, typeSet)
				}
			}
		}
	})

	doc.Find("[itemtype]").Each(func(_ int, sel *goquery.Selection) {
		itemtype, _ := sel.Attr("itemtype")
		if name := leafName(itemtype); name != "" {
			typeSet[name] = true
		}
	})

	if len(blocks) == 0 && len(typeSet) == 0 {
		return nil
	}

	var types []string
	for name := range typeSet {
		types = append(types, name)
	}
	sort.Strings(types)

	return &iris.StructuredData{JSONLD: blocks, SchemaOrgTypes: types}
}

// collectTypes records the block's @type, which may be a string or a list.
func collectTypes(block map[string]any, into map[string]bool) {
	switch t := block["@type"].(type) {
	case string:
		if t != "" {
			into[t] = true
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				into[s] = true
			}
		}
	}
}

// leafName returns the last path segment of a Schema.org itemtype URL.
func leafName(itemtype string) string {
	itemtype = strings.TrimSpace(strings.TrimSuffix(itemtype, "/"))
	if itemtype == "" {
		return ""
	}
	if idx := strings.LastIndex(itemtype, "/"); idx >= 0 {
		return itemtype[idx+1:]
	}
	return itemtype
}
