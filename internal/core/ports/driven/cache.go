package driven

import "encoding/json"

// ResponseCache memoises API responses keyed by endpoint and parameters.
// Parameter order never affects the key.
type ResponseCache interface {
	// Get returns the cached payload. Expired, corrupt or missing entries
	// are reported as absent.
	Get(endpoint string, params map[string]any) (json.RawMessage, bool)

	// Set stores payload, replacing any existing entry.
	Set(endpoint string, params map[string]any, payload any) error

	// Hits returns the number of successful Get calls.
	Hits() int64
}
