// Package types holds the wire envelopes shared by every API response.
package types

// SuccessEnvelope wraps all 2xx payloads under a "data" key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the machine-readable error body. Code values come from
// pkg/errors; Details carries field-level validation context when present.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps all non-2xx payloads under an "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
