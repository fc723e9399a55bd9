package sandbox

import "time"

// Error codes of the error envelope
const (
	CodeRateLimited         = "err_rate_limited"
	CodeUnauthorized        = "err_unauthorized"
	CodeInvalidData         = "err_invalid_data"
	CodeInternalServerError = "err_internal_server_error"
)

// ErrorEnvelope is returned instead of a result
type ErrorEnvelope struct {
	Error string `json:"error"`
	// Wait is in seconds, only set for err_rate_limited
	Wait *float64 `json:"wait,omitempty"`
}

// SessionRequest is the body of POST /v1/session
type SessionRequest struct {
	AppKey       string   `json:"app_key"`
	AppID        string   `json:"app_id"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Density      float64  `json:"density"`
	Language     string   `json:"language"`
	Country      string   `json:"country"`
	TestMode     bool     `json:"test_mode"`
	Orientations []string `json:"orientations"`
}

// BufferLimits tells the client how many creatives to keep per pair
type BufferLimits struct {
	Min int `json:"min"`
}

// SessionResponse answers POST /v1/session
type SessionResponse struct {
	SessionToken string       `json:"session_token"`
	BufferLimits BufferLimits `json:"buffer_limits"`
	// RotationInterval is in seconds
	RotationInterval float64 `json:"rotation_interval"`
}

// ContentRequest is the body of POST /v1/content
type ContentRequest struct {
	Combinations    map[string][]string `json:"combinations"`
	ExtraParameters map[string][]string `json:"extra_parameters,omitempty"`
}

// AdDescriptor describes a creative's slot
type AdDescriptor struct {
	Orientation string `json:"orientation"`
	Type        string `json:"type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// ContentItem is one creative
type ContentItem struct {
	Ad        AdDescriptor `json:"ad"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ContentResponse answers POST /v1/content
type ContentResponse struct {
	Result []ContentItem `json:"result"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}
