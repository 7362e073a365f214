package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksExtraction(t *testing.T) {
	html := `<html><body>
<a href="/about">About us</a>
<a href="https://example.com/contact">Contact</a>
<a href="https://other.example.org/page">Elsewhere</a>
<a href="#section">Jump</a>
<a href="javascript:void(0)">Click</a>
<a href="mailto:hi@example.com">Mail</a>
<a href="tel:+15551234">Call</a>
<a href="/about">About duplicate</a>
</body></html>`

	e := New(10000, nil)
	links := e.Links(html, "https://example.com/index")

	require.Len(t, links, 3)

	assert.Equal(t, "https://example.com/about", links[0].URL)
	assert.Equal(t, "About us", links[0].Text, "dedupe keeps the first occurrence")
	assert.False(t, links[0].IsExternal)

	assert.Equal(t, "https://example.com/contact", links[1].URL)
	assert.False(t, links[1].IsExternal)

	assert.Equal(t, "https://other.example.org/page", links[2].URL)
	assert.True(t, links[2].IsExternal)
}

func TestLinksSubdomainIsExternal(t *testing.T) {
	html := `<a href="https://blog.example.com/post">Blog</a>`

	e := New(10000, nil)
	links := e.Links(html, "https://example.com")

	require.Len(t, links, 1)
	assert.True(t, links[0].IsExternal, "a different host is external even under the same domain")
}

func TestLinkTextTruncated(t *testing.T) {
	longText := strings.Repeat("x", 500)
	html := `<a href="/page">` + longText + `</a>`

	e := New(10000, nil)
	links := e.Links(html, "https://example.com")

	require.Len(t, links, 1)
	assert.Len(t, links[0].Text, 200)
}

func TestLinksEmptyPage(t *testing.T) {
	e := New(10000, nil)
	assert.Nil(t, e.Links("", "https://example.com"))
	assert.Empty(t, e.Links("<html><body></body></html>", "https://example.com"))
}
