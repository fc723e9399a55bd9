package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/birbparty/birb-ads/sdk"
)

// Colors for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
	colorBold   = "\033[1m"
)

// rotatingRenderer flips orientation on demand to show per-orientation buffers.
type rotatingRenderer struct {
	mu          sync.Mutex
	orientation sdk.Orientation
	onEvent     func(sdk.RendererEvent)
}

func (r *rotatingRenderer) ScreenSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orientation == sdk.OrientationLandscape {
		return 1920, 1080
	}
	return 1080, 1920
}

func (r *rotatingRenderer) Orientation() sdk.Orientation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orientation
}

func (r *rotatingRenderer) rotate() sdk.Orientation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orientation == sdk.OrientationLandscape {
		r.orientation = sdk.OrientationPortrait
	} else {
		r.orientation = sdk.OrientationLandscape
	}
	return r.orientation
}

func (r *rotatingRenderer) ShowAd(c *sdk.Creative, opts *sdk.ShowOptions) error {
	fmt.Printf("%s  ▶ %s/%s %dx%d%s\n", colorCyan, c.Orientation, c.AdType, c.Width, c.Height, colorReset)
	return nil
}

func (r *rotatingRenderer) HideBanner() error {
	r.mu.Lock()
	fn := r.onEvent
	r.mu.Unlock()
	if fn != nil {
		fn(sdk.RendererBannerHidden)
	}
	return nil
}

func (r *rotatingRenderer) Subscribe(fn func(sdk.RendererEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = fn
}

// DemoObserver prints retries as they are scheduled
type DemoObserver struct {
	sdk.NoopObserver
}

func (o *DemoObserver) OnRetryScheduled(path string, attempt int, delay time.Duration, err error) {
	fmt.Printf("%s  ↻ retry #%d of %s in %v: %v%s\n", colorYellow, attempt, path, delay, err, colorReset)
}

func main() {
	fmt.Printf("%s%sBirb Ads SDK - Advanced Demo%s\n", colorBold, colorCyan, colorReset)
	fmt.Println(strings.Repeat("=", 40))

	config, err := sdk.LoadConfigFromEnv()
	if err != nil {
		fmt.Printf("%sInvalid environment: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	collector := sdk.NewMetricsCollector()
	config.WithObserver(sdk.NewCompositeObserver(
		collector,
		sdk.NewPrometheusObserver(reg),
		&DemoObserver{},
	))

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(":2112", nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%smetrics listener: %v%s\n", colorRed, err, colorReset)
		}
	}()

	renderer := &rotatingRenderer{orientation: sdk.OrientationPortrait}
	client, err := sdk.NewClient(config, renderer)
	if err != nil {
		fmt.Printf("%sFailed to create client: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	defer client.Close()

	client.On(func(ev sdk.Event) {
		switch ev.Type {
		case sdk.EventError:
			fmt.Printf("%s  ✗ %v%s\n", colorRed, ev.Err, colorReset)
		case sdk.EventAdShown:
			fmt.Printf("%s  ✓ shown %s%s\n", colorGreen, ev.AdType, colorReset)
		default:
			fmt.Printf("%s  · %s%s\n", colorGray, ev.Type, colorReset)
		}
	})

	client.Init("demo-app-key",
		[]sdk.AdType{sdk.AdTypeBanner, sdk.AdTypeInterstitial},
		[]sdk.Orientation{sdk.OrientationPortrait, sdk.OrientationLandscape})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	round := 0
	for {
		select {
		case <-sigs:
			printStats(collector)
			return
		case <-ticker.C:
			round++
			switch round % 4 {
			case 0:
				fmt.Printf("%sRotated to %s%s\n", colorBold, renderer.rotate(), colorReset)
			case 1:
				client.ShowAd(sdk.AdTypeBanner, &sdk.ShowOptions{Position: "top"})
			case 2:
				client.ShowAd(sdk.AdTypeInterstitial, nil)
			case 3:
				client.SetParameters(sdk.Parameters{"round": {fmt.Sprint(round)}})
			}
			fmt.Printf("%s  state=%s%s\n", colorGray, client.State(), colorReset)
		}
	}
}

func printStats(collector *sdk.MetricsCollector) {
	snapshot := collector.GetMetrics()
	fmt.Println()
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Requests:  %v\n", snapshot["requests"])
	fmt.Printf("Retries:   %v\n", snapshot["retries"])
	fmt.Printf("Fill rate: %.2f\n", snapshot["fill_rate"].(float64))
	fmt.Printf("Buffers:   %v\n", snapshot["buffer_levels"])
}
