package main

import (
	"fmt"
	"log"
	"time"

	"github.com/birbparty/birb-ads/sdk"
)

// consoleRenderer prints creatives instead of drawing them.
type consoleRenderer struct {
	onEvent func(sdk.RendererEvent)
}

func (r *consoleRenderer) ScreenSize() (int, int) { return 1080, 1920 }

func (r *consoleRenderer) Orientation() sdk.Orientation { return sdk.OrientationPortrait }

func (r *consoleRenderer) ShowAd(c *sdk.Creative, opts *sdk.ShowOptions) error {
	fmt.Printf("  [screen] %s %dx%d from %s\n", c.AdType, c.Width, c.Height, c.URL)
	if c.AdType == sdk.AdTypeInterstitial && r.onEvent != nil {
		// The player closes the interstitial right away.
		go func() {
			time.Sleep(500 * time.Millisecond)
			r.onEvent(sdk.RendererInterstitialClosed)
		}()
	}
	return nil
}

func (r *consoleRenderer) HideBanner() error {
	fmt.Println("  [screen] banner hidden")
	if r.onEvent != nil {
		r.onEvent(sdk.RendererBannerHidden)
	}
	return nil
}

func (r *consoleRenderer) Subscribe(fn func(sdk.RendererEvent)) { r.onEvent = fn }

func main() {
	config := sdk.DefaultConfig().
		WithBaseURL("http://localhost:8080").
		WithAppID("com.example.basic").
		WithTestMode(true)

	client, err := sdk.NewClient(config, &consoleRenderer{})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ready := make(chan struct{}, 1)
	client.On(func(ev sdk.Event) {
		switch ev.Type {
		case sdk.EventInitialized:
			fmt.Println("✓ Session created")
			select {
			case ready <- struct{}{}:
			default:
			}
		case sdk.EventError:
			fmt.Printf("✗ Error: %v\n", ev.Err)
		case sdk.EventNoAd:
			fmt.Printf("- No %s ad buffered yet\n", ev.AdType)
		case sdk.EventAdShown:
			fmt.Printf("✓ Showed %s (height %d)\n", ev.AdType, ev.Height)
		default:
			fmt.Printf("  Event: %s\n", ev.Type)
		}
	})

	fmt.Println("Initializing...")
	client.Init("demo-app-key",
		[]sdk.AdType{sdk.AdTypeBanner, sdk.AdTypeInterstitial},
		[]sdk.Orientation{sdk.OrientationPortrait})

	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		log.Fatal("Session was not created; is the sandbox server running on http://localhost:8080?")
	}

	// Give the first refill a moment to land
	for i := 0; i < 20 && !client.CanShowAd(sdk.AdTypeBanner); i++ {
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("\n--- Banner ---")
	client.ShowAd(sdk.AdTypeBanner, &sdk.ShowOptions{Position: "bottom"})
	time.Sleep(2 * time.Second)
	client.HideBanner()

	fmt.Println("\n--- Interstitial ---")
	client.ShowAd(sdk.AdTypeInterstitial, nil)
	time.Sleep(time.Second)

	fmt.Println("\n--- Targeting ---")
	client.SetParameters(sdk.Parameters{"level": {"7"}, "segment": {"whale"}})
	time.Sleep(time.Second)
	fmt.Printf("Buffered banners after refetch: %d\n",
		client.BufferCount(sdk.OrientationPortrait, sdk.AdTypeBanner))
}
