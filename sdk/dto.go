package sdk

import (
	"time"
)

// sessionRequest is the body of POST /v1/session.
type sessionRequest struct {
	AppKey       string        `json:"app_key"`
	AppID        string        `json:"app_id"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Density      float64       `json:"density"`
	Language     string        `json:"language"`
	Country      string        `json:"country"`
	TestMode     bool          `json:"test_mode"`
	Orientations []Orientation `json:"orientations"`
}

type bufferLimits struct {
	Min int `json:"min"`
}

// sessionResponse is the successful answer of POST /v1/session.
type sessionResponse struct {
	SessionToken string       `json:"session_token"`
	BufferLimits bufferLimits `json:"buffer_limits"`
	// RotationInterval is in seconds.
	RotationInterval float64 `json:"rotation_interval"`
}

// contentRequest is the body of POST /v1/content.
type contentRequest struct {
	Combinations    map[Orientation][]AdType `json:"combinations"`
	ExtraParameters Parameters               `json:"extra_parameters,omitempty"`
}

type adDescriptor struct {
	Orientation Orientation `json:"orientation"`
	Type        AdType      `json:"type"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
}

type contentItem struct {
	Ad        adDescriptor `json:"ad"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// contentResponse is the successful answer of POST /v1/content.
type contentResponse struct {
	Result []contentItem `json:"result"`
}

// creatives converts the response items, skipping entries with an unknown
// orientation or type.
func (r *contentResponse) creatives() []*Creative {
	out := make([]*Creative, 0, len(r.Result))
	for _, item := range r.Result {
		if !item.Ad.Orientation.Valid() || !item.Ad.Type.Valid() {
			continue
		}
		out = append(out, &Creative{
			Orientation: item.Ad.Orientation,
			AdType:      item.Ad.Type,
			Width:       item.Ad.Width,
			Height:      item.Ad.Height,
			URL:         item.URL,
			ExpiresAt:   item.ExpiresAt,
		})
	}
	return out
}
