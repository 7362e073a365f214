// Package iris defines the wire types shared by the fetch pipeline and the
// HTTP surface: fetch requests and responses, extracted content, and the
// fetch error taxonomy.
package iris

import "encoding/json"

// WaitStrategy selects how the fetcher decides a dynamically rendered page
// is ready for extraction.
type WaitStrategy string

const (
	WaitLoad             WaitStrategy = "load"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitNetworkIdle      WaitStrategy = "networkidle"
	WaitSelector         WaitStrategy = "selector"
	WaitTimeout          WaitStrategy = "timeout"
)

// Valid reports whether s is a known wait strategy.
func (s WaitStrategy) Valid() bool {
	switch s {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle, WaitSelector, WaitTimeout:
		return true
	}
	return false
}

// FetchRequest is a request to fetch a single URL.
type FetchRequest struct {
	URL             string            `json:"url"`
	WaitForSelector string            `json:"wait_for_selector,omitempty"`
	WaitAfterLoadMS int               `json:"wait_after_load_ms,omitempty"`
	WaitStrategy    WaitStrategy      `json:"wait_strategy,omitempty"`
	ExtractText     bool              `json:"extract_text"`
	ExtractLinks    bool              `json:"extract_links"`
	ExtractMetadata bool              `json:"extract_metadata"`
	Screenshot      bool              `json:"screenshot"`
	TimeoutMS       int               `json:"timeout_ms,omitempty"`
	Cache           bool              `json:"cache"`
	Headers         map[string]string `json:"headers,omitempty"`
}

// UnmarshalJSON applies request defaults before decoding so that omitted
// flags keep their documented defaults (text and metadata extraction on,
// caching on, wait strategy "load").
func (r *FetchRequest) UnmarshalJSON(data []byte) error {
	type alias FetchRequest
	a := alias{
		WaitStrategy:    WaitLoad,
		ExtractText:     true,
		ExtractMetadata: true,
		Cache:           true,
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = FetchRequest(a)
	return nil
}

// BatchFetchRequest is a request to fetch between 1 and 10 URLs concurrently.
type BatchFetchRequest struct {
	Requests []FetchRequest `json:"requests"`
}

// PageMetadata holds metadata extracted from a page. All fields are optional.
type PageMetadata struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	OGTitle       string `json:"og_title,omitempty"`
	OGDescription string `json:"og_description,omitempty"`
	OGImage       string `json:"og_image,omitempty"`
	Language      string `json:"language,omitempty"`
	CanonicalURL  string `json:"canonical_url,omitempty"`
	Author        string `json:"author,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
	PDFPages      int    `json:"pdf_pages,omitempty"`
	PDFAuthor     string `json:"pdf_author,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m *PageMetadata) IsZero() bool {
	return m == nil || *m == PageMetadata{}
}

// ExtractedLink is a single link extracted from a page.
type ExtractedLink struct {
	URL        string `json:"url"`
	Text       string `json:"text"`
	IsExternal bool   `json:"is_external"`
}

// StructuredData holds JSON-LD blocks and Schema.org type names found on a
// page.
type StructuredData struct {
	JSONLD         []map[string]any `json:"json_ld,omitempty"`
	SchemaOrgTypes []string         `json:"schema_org_types,omitempty"`
}

// FetchResponse is the externally visible result of a fetch.
type FetchResponse struct {
	URL              string          `json:"url"`
	StatusCode       int             `json:"status_code"`
	ContentText      string          `json:"content_text,omitempty"`
	ContentHTML      string          `json:"content_html,omitempty"`
	Metadata         *PageMetadata   `json:"metadata,omitempty"`
	Links            []ExtractedLink `json:"links,omitempty"`
	ScreenshotBase64 string          `json:"screenshot_base64,omitempty"`
	StructuredData   *StructuredData `json:"structured_data,omitempty"`
	ContentLength    int             `json:"content_length"`
	FetchTimeMS      int64           `json:"fetch_time_ms"`
	Cached           bool            `json:"cached"`
	Error            *FetchError     `json:"error,omitempty"`
}

// BatchFetchResponse is the result of a batch fetch, in request order.
type BatchFetchResponse struct {
	Results     []FetchResponse `json:"results"`
	TotalTimeMS int64           `json:"total_time_ms"`
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status            string  `json:"status"`
	Service           string  `json:"service"`
	Version           string  `json:"version"`
	BrowserConnected  bool    `json:"browser_connected"`
	CacheConnected    bool    `json:"cache_connected"`
	SentinelConnected bool    `json:"sentinel_connected"`
	ActivePages       int     `json:"active_pages"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}
