package extract

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleJSONLD = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{
    "@context": "https://schema.org",
    "@type": "Article",
    "headline": "Test Article",
    "author": {"@type": "Person", "name": "John Doe"}
}
</script>
</head><body><p>Content</p></body></html>`

const microdataHTML = `<!DOCTYPE html>
<html><body>
<div itemscope itemtype="https://schema.org/Product">
    <span itemprop="name">Widget</span>
    <div itemprop="offers" itemscope itemtype="https://schema.org/Offer">
        <span itemprop="price">9.99</span>
    </div>
</div>
</body></html>`

func TestStructuredDataArticle(t *testing.T) {
	e := New(10000, nil)
	sd := e.StructuredData(articleJSONLD)

	require.NotNil(t, sd)
	require.Len(t, sd.JSONLD, 1)
	assert.Equal(t, "Article", sd.JSONLD[0]["@type"])
	assert.Equal(t, "Test Article", sd.JSONLD[0]["headline"])
	assert.Contains(t, sd.SchemaOrgTypes, "Article")
}

func TestStructuredDataMultipleBlocks(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type": "Article", "headline": "Test"}</script>
<script type="application/ld+json">{"@type": "BreadcrumbList", "itemListElement": []}</script>
</head><body></body></html>`

	e := New(10000, nil)
	sd := e.StructuredData(html)

	require.NotNil(t, sd)
	assert.Len(t, sd.JSONLD, 2)
	assert.Contains(t, sd.SchemaOrgTypes, "Article")
	assert.Contains(t, sd.SchemaOrgTypes, "BreadcrumbList")
}

func TestStructuredDataArrayFlattened(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
[
    {"@type": "Article", "headline": "Test"},
    {"@type": "WebPage", "name": "Page"}
]
</script>
</head><body></body></html>`

	e := New(10000, nil)
	sd := e.StructuredData(html)

	require.NotNil(t, sd)
	assert.Len(t, sd.JSONLD, 2, "a top-level array contributes each element")
}

func TestStructuredDataInvalidBlockSkipped(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{invalid json here}</script>
<script type="application/ld+json">{"@type": "Article", "headline": "Valid"}</script>
</head><body></body></html>`

	e := New(10000, nil)
	sd := e.StructuredData(html)

	require.NotNil(t, sd)
	require.Len(t, sd.JSONLD, 1)
	assert.Equal(t, "Valid", sd.JSONLD[0]["headline"])
}

func TestStructuredDataMultiType(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{"@type": ["Article", "NewsArticle"], "headline": "Multi"}
</script>
</head><body></body></html>`

	e := New(10000, nil)
	sd := e.StructuredData(html)

	require.NotNil(t, sd)
	assert.Contains(t, sd.SchemaOrgTypes, "Article")
	assert.Contains(t, sd.SchemaOrgTypes, "NewsArticle")
}

func TestStructuredDataMicrodata(t *testing.T) {
	e := New(10000, nil)
	sd := e.StructuredData(microdataHTML)

	require.NotNil(t, sd)
	assert.Nil(t, sd.JSONLD)
	assert.Contains(t, sd.SchemaOrgTypes, "Product")
	assert.Contains(t, sd.SchemaOrgTypes, "Offer")
	assert.True(t, sort.StringsAreSorted(sd.SchemaOrgTypes), "types are reported sorted")
}

func TestStructuredDataAbsent(t *testing.T) {
	e := New(10000, nil)

	assert.Nil(t, e.StructuredData(`<html><body><p>Just plain content</p></body></html>`))
	assert.Nil(t, e.StructuredData(""))
}
