package domain

import "encoding/json"

// APIRequest is a raw REST call passed through to the API.
type APIRequest struct {
	Method   string
	Endpoint string
	Params   map[string]string
}

// APIResponse is the raw result of an APIRequest.
type APIResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
	ETag   string          `json:"etag,omitempty"`
	Link   string          `json:"link,omitempty"`

	// Next is the absolute URL of the following page, empty on the last.
	Next string `json:"next,omitempty"`
}
