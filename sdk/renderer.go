package sdk

// RendererEvent is an event raised by the renderer on its own, e.g. when the
// user dismisses an interstitial.
type RendererEvent string

const (
	RendererInterstitialClosed RendererEvent = "interstitial-closed"
	RendererBannerHidden       RendererEvent = "banner-hidden"
)

// Renderer presents creatives on behalf of the client. Implementations are
// supplied by the host application.
//
// The client never calls the renderer while holding its lock, so renderer
// methods may call back into the client.
type Renderer interface {
	// ScreenSize reports the display size sent at session creation.
	ScreenSize() (width, height int)

	// Orientation reports the current device orientation. ShowAd and
	// CanShowAd serve creatives for this orientation.
	Orientation() Orientation

	// ShowAd presents the creative. A returned error (or a panic) makes
	// ShowAd report false.
	ShowAd(creative *Creative, opts *ShowOptions) error

	// HideBanner removes a banner currently on screen.
	HideBanner() error

	// Subscribe registers the callback receiving renderer events. It is
	// called once, by NewClient.
	Subscribe(func(RendererEvent))
}
