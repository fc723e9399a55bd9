package sandbox

import (
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	orientationLandscape = "landscape"
	orientationPortrait  = "portrait"

	adTypeBanner       = "banner"
	adTypeInterstitial = "interstitial"
)

func validOrientation(o string) bool {
	return o == orientationLandscape || o == orientationPortrait
}

func validAdType(t string) bool {
	return t == adTypeBanner || t == adTypeInterstitial
}

// slotSize returns the creative size for a pair on a w x h screen
func slotSize(orientation, adType string, w, h int) (int, int) {
	if adType == adTypeBanner {
		if orientation == orientationLandscape {
			return 728, 90
		}
		return 320, 50
	}

	short, long := w, h
	if short > long {
		short, long = long, short
	}
	if orientation == orientationLandscape {
		return long, short
	}
	return short, long
}

// creativeFactory generates placeholder creatives
type creativeFactory struct {
	cdnBaseURL string
	ttl        time.Duration
	perPair    int
}

// generate returns perPair creatives for every requested pair, in a stable
// order. Extra parameters end up in the creative URL so that targeting is
// visible on the client.
func (f *creativeFactory) generate(session *Session, combinations map[string][]string, extra map[string][]string, now time.Time) []ContentItem {
	orientations := make([]string, 0, len(combinations))
	for o := range combinations {
		orientations = append(orientations, o)
	}
	sort.Strings(orientations)

	query := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	if session.TestMode {
		query.Set("test", "1")
	}

	var items []ContentItem
	for _, o := range orientations {
		types := append([]string(nil), combinations[o]...)
		sort.Strings(types)
		for _, t := range types {
			w, h := slotSize(o, t, session.Width, session.Height)
			for i := 0; i < f.perPair; i++ {
				u := f.cdnBaseURL + "/" + o + "/" + t + "/" + uuid.NewString() + ".html"
				if len(query) > 0 {
					u += "?" + query.Encode()
				}
				items = append(items, ContentItem{
					Ad:        AdDescriptor{Orientation: o, Type: t, Width: w, Height: h},
					URL:       u,
					ExpiresAt: now.Add(f.ttl).UTC(),
				})
			}
		}
	}
	return items
}
