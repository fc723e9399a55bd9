package sdk

import (
	"fmt"
	"time"
)

// Orientation is the device layout axis a creative was produced for.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// Valid reports whether o is a known orientation.
func (o Orientation) Valid() bool {
	return o == OrientationLandscape || o == OrientationPortrait
}

// AdType is the presentation format of a creative.
type AdType string

const (
	// AdTypeBanner is a persistent ad that can auto-rotate.
	AdTypeBanner AdType = "banner"
	// AdTypeInterstitial is a one-shot full-screen ad.
	AdTypeInterstitial AdType = "interstitial"
)

// Valid reports whether t is a known ad type.
func (t AdType) Valid() bool {
	return t == AdTypeBanner || t == AdTypeInterstitial
}

// Creative is a single servable ad asset. Creatives are immutable and are
// handed out at most once by the buffer.
type Creative struct {
	Orientation Orientation
	AdType      AdType
	Width       int
	Height      int
	URL         string
	ExpiresAt   time.Time
}

// Key returns the buffer key for the creative.
func (c *Creative) Key() Key {
	return Key{Orientation: c.Orientation, AdType: c.AdType}
}

// Expired reports whether the creative is no longer servable at now.
func (c *Creative) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Key identifies one buffer slot.
type Key struct {
	Orientation Orientation
	AdType      AdType
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Orientation, k.AdType)
}

// ShowOptions are passed through to the renderer untouched.
type ShowOptions struct {
	// Position is a renderer-specific placement hint, e.g. "top" or "bottom".
	Position string
	// Extra carries any other renderer options.
	Extra map[string]string
}

// Parameters are extra targeting parameters sent with every content request,
// e.g. {"age_restriction": ["18"]}.
type Parameters map[string][]string

func (p Parameters) clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}
