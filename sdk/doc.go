// Package sdk is the Go client for the Birb Ads ad server. It keeps a local
// buffer of ad creatives so that a game can show an ad the moment it asks for
// one, without waiting on the network.
//
// # Features
//
// The SDK provides:
//   - A buffer of creatives keyed by orientation and ad type, refilled in the background
//   - Server-directed retries for rate limiting, server errors and network failures
//   - Transparent session re-creation when the server rejects the session token
//   - Banner auto-rotation at the interval chosen by the server
//   - Expiry sweeping so that stale creatives are never shown
//   - Prometheus metrics and OpenTelemetry spans for every request attempt
//
// # Basic Usage
//
// The host application supplies a Renderer that draws creatives and reports
// the screen; the SDK decides what to draw and when:
//
//	package main
//
//	import (
//	    "log"
//
//	    "github.com/birbparty/birb-ads/sdk"
//	)
//
//	func main() {
//	    config := sdk.DefaultConfig().
//	        WithBaseURL("https://ads.example.com").
//	        WithAppID("com.example.game")
//
//	    client, err := sdk.NewClient(config, myRenderer)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer client.Close()
//
//	    client.On(func(ev sdk.Event) {
//	        log.Printf("ad event: %s", ev.Type)
//	    })
//
//	    client.Init("app-key",
//	        []sdk.AdType{sdk.AdTypeBanner, sdk.AdTypeInterstitial},
//	        []sdk.Orientation{sdk.OrientationPortrait})
//
//	    // Later, at a natural break in the game
//	    if client.CanShowAd(sdk.AdTypeInterstitial) {
//	        client.ShowAd(sdk.AdTypeInterstitial, nil)
//	    }
//	}
//
// Init, ShowAd and SetParameters never block on the network. Outcomes are
// reported through events registered with On.
//
// # Configuration
//
// The SDK can be configured using a fluent builder pattern or from ADSDK_*
// environment variables:
//
//	config := sdk.DefaultConfig().
//	    WithBaseURL("https://ads.example.com").
//	    WithTimeout(10 * time.Second).
//	    WithDevice(sdk.DeviceInfo{Density: 2, Language: "en", Country: "US"}).
//	    WithAutoRotate(false)
//
//	config, err := sdk.LoadConfigFromEnv()
//
// # Errors
//
// Transient failures (network errors, err_rate_limited,
// err_internal_server_error) are retried internally and never reach
// listeners. Everything else arrives as an EventError:
//
//	client.On(func(ev sdk.Event) {
//	    if ev.Type != sdk.EventError {
//	        return
//	    }
//	    switch {
//	    case errors.Is(ev.Err, sdk.ErrInvalidData):
//	        // The server rejected Init or SetParameters input
//	    case errors.Is(ev.Err, sdk.ErrInvalidAdType):
//	        // ShowAd was called with a type not requested at Init
//	    }
//	})
//
// # Observability
//
// Attach an Observer to watch requests, retries and buffer levels:
//
//	reg := prometheus.NewRegistry()
//	config.WithObserver(sdk.NewCompositeObserver(
//	    sdk.NewMetricsCollector(),
//	    sdk.NewPrometheusObserver(reg),
//	))
//
// Request attempts are traced with the configured TracerProvider, or the
// global one when none is set.
//
// # Thread Safety
//
// The client is safe for concurrent use. Listeners and renderer calls run
// without any SDK lock held, so they may call back into the client.
package sdk
