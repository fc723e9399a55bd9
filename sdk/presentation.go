package sdk

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/birbparty/birb-ads/internal/clock"
)

// CanShowAd reports whether ShowAd would find a creative
func (c *client) CanShowAd(adType AdType) bool {
	return c.buffer.Count(c.currentOrientation(), adType) > 0
}

// ShowAd serves the oldest buffered creative of adType through the renderer
func (c *client) ShowAd(adType AdType, opts *ShowOptions) bool {
	orientation := c.currentOrientation()
	key := Key{Orientation: orientation, AdType: adType}

	c.lock()
	if c.closed {
		c.unlock()
		return false
	}
	if c.args == nil || !containsAdType(c.args.adTypes, adType) {
		c.emitErrorLocked(validationError(ErrInvalidAdType, "ad type %q was not requested at Init", adType))
		c.unlock()
		return false
	}

	creative, ok := c.buffer.Get(orientation, adType)
	c.refillLocked([]Orientation{orientation}, []AdType{adType})
	if !ok {
		c.observer.OnAdMissed(key)
		c.emitLocked(Event{Type: EventNoAd, AdType: adType, Orientation: orientation})
		c.unlock()
		return false
	}
	c.observer.OnAdServed(key)
	c.observer.OnBufferLevel(key, c.buffer.Count(orientation, adType))
	c.unlock()

	if err := c.present(creative, opts); err != nil {
		c.logger.WithFields(logrus.Fields{
			"ad_type":     adType,
			"orientation": orientation,
			"url":         creative.URL,
		}).WithError(err).Warn("Renderer failed to show ad")
		return false
	}

	c.lock()
	defer c.unlock()
	if c.closed {
		return true
	}

	c.emitLocked(Event{Type: EventAdShown, AdType: adType, Height: creative.Height})
	c.show = &showState{adType: adType, opts: opts}
	c.stopRotationLocked()
	if adType == AdTypeBanner && c.config.AutoRotate {
		c.startBannerRotationLocked()
	}
	return true
}

func (c *client) present(creative *Creative, opts *ShowOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRenderer, r)
		}
	}()
	if err := c.renderer.ShowAd(creative, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderer, err)
	}
	return nil
}

// startBannerRotationLocked re-shows the current banner every rotation interval.
func (c *client) startBannerRotationLocked() {
	if c.show == nil || c.show.adType != AdTypeBanner {
		return
	}
	if c.session == nil || c.session.rotationInterval <= 0 {
		return
	}

	st := *c.show
	c.rotation = clock.Every(c.clock, c.session.rotationInterval, func() {
		defer c.recoverBackground("banner rotation")
		c.ShowAd(st.adType, st.opts)
	})
}

func (c *client) stopRotationLocked() {
	if c.rotation != nil {
		c.rotation.Stop()
		c.rotation = nil
	}
}

// HideBanner delegates to the renderer; failures are only logged. Rotation
// keeps its schedule until the next ShowAd replaces it.
func (c *client) HideBanner() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Warn("Renderer panicked hiding banner")
		}
	}()
	if err := c.renderer.HideBanner(); err != nil {
		c.logger.WithError(err).Warn("Renderer failed to hide banner")
	}
}

// currentOrientation asks the renderer, falling back to the first
// orientation requested at Init.
func (c *client) currentOrientation() (o Orientation) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Warn("Renderer panicked reporting orientation")
			o = c.fallbackOrientation()
		}
	}()
	o = c.renderer.Orientation()
	if !o.Valid() {
		o = c.fallbackOrientation()
	}
	return o
}

func (c *client) fallbackOrientation() Orientation {
	c.lock()
	defer c.unlock()
	if c.args != nil && len(c.args.orientations) > 0 {
		return c.args.orientations[0]
	}
	return OrientationLandscape
}

func (c *client) screenSize() (w, h int) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Warn("Renderer panicked reporting screen size")
			w, h = 0, 0
		}
	}()
	return c.renderer.ScreenSize()
}
