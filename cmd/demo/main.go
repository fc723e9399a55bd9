package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/birbparty/birb-ads/internal/eventbridge"
	"github.com/birbparty/birb-ads/internal/telemetry"
	"github.com/birbparty/birb-ads/sdk"
)

// demoConfig holds the host-side settings; the SDK reads its own ADSDK_* variables
type demoConfig struct {
	AppKey       string        `env:"DEMO_APP_KEY,default=demo-app-key"`
	Orientation  string        `env:"DEMO_ORIENTATION,default=portrait"`
	Width        int           `env:"DEMO_SCREEN_WIDTH,default=1080"`
	Height       int           `env:"DEMO_SCREEN_HEIGHT,default=1920"`
	ShowInterval time.Duration `env:"DEMO_SHOW_INTERVAL,default=15s"`
	MetricsAddr  string        `env:"DEMO_METRICS_ADDR,default=:2112"`
}

// logRenderer "presents" creatives by logging them
type logRenderer struct {
	mu          sync.Mutex
	log         logrus.FieldLogger
	orientation sdk.Orientation
	width       int
	height      int
	onEvent     func(sdk.RendererEvent)
}

func (r *logRenderer) ScreenSize() (int, int)       { return r.width, r.height }
func (r *logRenderer) Orientation() sdk.Orientation { return r.orientation }

func (r *logRenderer) ShowAd(c *sdk.Creative, opts *sdk.ShowOptions) error {
	entry := r.log.WithFields(logrus.Fields{
		"ad_type": c.AdType,
		"size":    fmt.Sprintf("%dx%d", c.Width, c.Height),
		"url":     c.URL,
		"expires": c.ExpiresAt.Format(time.RFC3339),
	})
	if opts != nil && opts.Position != "" {
		entry = entry.WithField("position", opts.Position)
	}
	entry.Info("🖼️  Showing ad")

	if c.AdType == sdk.AdTypeInterstitial {
		// the player dismisses the interstitial a little later
		time.AfterFunc(3*time.Second, func() { r.emit(sdk.RendererInterstitialClosed) })
	}
	return nil
}

func (r *logRenderer) HideBanner() error {
	r.log.Info("Banner hidden")
	r.emit(sdk.RendererBannerHidden)
	return nil
}

func (r *logRenderer) Subscribe(fn func(sdk.RendererEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = fn
}

func (r *logRenderer) emit(ev sdk.RendererEvent) {
	r.mu.Lock()
	fn := r.onEvent
	r.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func main() {
	if err := telemetry.Init(telemetry.NewConfigFromEnv("birb-ads-demo")); err != nil {
		logrus.Fatalf("Failed to initialize telemetry: %v", err)
	}
	log := telemetry.L()

	var demo demoConfig
	if err := envdecode.StrictDecode(&demo); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		log.Fatalf("Failed to load demo configuration: %v", err)
	}

	cfg, err := sdk.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load SDK configuration: %v", err)
	}

	reg := prometheus.NewRegistry()
	cfg = cfg.
		WithLogger(log.WithField("component", "sdk")).
		WithTracerProvider(otel.GetTracerProvider()).
		WithObserver(sdk.NewPrometheusObserver(reg))

	renderer := &logRenderer{
		log:         log.WithField("component", "renderer"),
		orientation: sdk.Orientation(demo.Orientation),
		width:       demo.Width,
		height:      demo.Height,
	}

	client, err := sdk.NewClient(cfg, renderer)
	if err != nil {
		log.Fatalf("Failed to create ad client: %v", err)
	}

	client.On(func(ev sdk.Event) {
		entry := log.WithFields(logrus.Fields{"event": ev.Type, "ad_type": ev.AdType})
		if ev.Err != nil {
			entry.WithError(ev.Err).Warn("Ad event")
			return
		}
		entry.Debug("Ad event")
	})

	bridgeCfg, err := eventbridge.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load event bridge configuration: %v", err)
	}
	var bridge *eventbridge.Publisher
	if bridgeCfg.Enabled() {
		bridge, err = eventbridge.NewPublisher(bridgeCfg, log)
		if err != nil {
			log.Fatalf("Failed to connect event bridge: %v", err)
		}
		client.On(bridge.Listener())
		log.WithField("url", bridgeCfg.URL).Info("✅ Publishing ad events to NATS")
	}

	metricsServer := &http.Server{
		Addr:              demo.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"server":  cfg.BaseURL,
		"metrics": demo.MetricsAddr,
	}).Info("🐦 Birb Ads demo starting...")

	client.Init(demo.AppKey,
		[]sdk.AdType{sdk.AdTypeBanner, sdk.AdTypeInterstitial},
		[]sdk.Orientation{sdk.OrientationPortrait, sdk.OrientationLandscape})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(demo.ShowInterval)
	defer ticker.Stop()

	bannerUp := false
	for {
		select {
		case <-ticker.C:
			if !bannerUp && client.CanShowAd(sdk.AdTypeBanner) {
				bannerUp = client.ShowAd(sdk.AdTypeBanner, &sdk.ShowOptions{Position: "bottom"})
			}
			if client.CanShowAd(sdk.AdTypeInterstitial) {
				client.ShowAd(sdk.AdTypeInterstitial, nil)
			} else {
				log.WithField("state", client.State()).Info("No interstitial buffered yet")
			}

		case <-sigChan:
			log.Info("🛑 Shutting down gracefully...")
			client.HideBanner()
			_ = client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if bridge != nil {
				if err := bridge.Close(ctx); err != nil {
					log.WithError(err).Warn("Failed to flush ad events")
				}
			}
			_ = metricsServer.Shutdown(ctx)
			_ = telemetry.Shutdown(ctx)
			return
		}
	}
}
