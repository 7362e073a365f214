package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// MakeKey derives the cache key for a fetch. The key is the hex SHA-256 of a
// canonical JSON object holding the URL plus every non-nil shaping parameter,
// with keys sorted, so two requests that differ only in omitted options hash
// to the same key.
func MakeKey(url string, params map[string]any) string {
	payload := make(map[string]any, len(params)+1)
	payload["url"] = url
	for k, v := range params {
		if v == nil {
			continue
		}
		payload[k] = v
	}

	// encoding/json writes map keys in sorted order, which makes the
	// encoding canonical.
	data, _ := json.Marshal(payload)

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
