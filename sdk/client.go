package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/birbparty/birb-ads/internal/clock"
)

const (
	sweepInterval  = 5 * time.Second
	refillInterval = 10 * time.Second
)

// Client fetches, buffers and serves ad creatives for a host application.
//
// No method returns an error or panics because of a remote failure: failures
// the caller should act on are delivered as EventError, everything transient
// (rate limiting, server errors, network trouble, an expired session during
// ad fetch) is retried internally. All methods are safe for concurrent use.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().WithBaseURL(url), renderer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.On(func(ev sdk.Event) {
//	    if ev.Type == sdk.EventError {
//	        log.Printf("ad error: %v", ev.Err)
//	    }
//	})
//
//	client.Init("app-key",
//	    []sdk.AdType{sdk.AdTypeBanner, sdk.AdTypeInterstitial},
//	    []sdk.Orientation{sdk.OrientationPortrait})
//
//	// later
//	if client.CanShowAd(sdk.AdTypeInterstitial) {
//	    client.ShowAd(sdk.AdTypeInterstitial, nil)
//	}
type Client interface {
	// Init starts a session. Completion is reported through EventInitialized
	// or EventError. Calling Init again replaces the session.
	Init(appKey string, adTypes []AdType, orientations []Orientation)

	// CanShowAd reports whether a creative of adType is buffered for the
	// renderer's current orientation.
	CanShowAd(adType AdType) bool

	// ShowAd presents the next buffered creative of adType. It reports false
	// when nothing could be shown; EventNoAd or EventError tell why.
	ShowAd(adType AdType, opts *ShowOptions) bool

	// HideBanner asks the renderer to hide the current banner.
	HideBanner()

	// SetParameters replaces the extra targeting parameters. Buffered
	// creatives are dropped and refetched with the new parameters.
	SetParameters(params Parameters)

	// On registers a listener and returns a function removing it.
	On(listener Listener) (unsubscribe func())

	// State reports the session state.
	State() State

	// BufferCount reports how many unexpired creatives are buffered for the key.
	BufferCount(orientation Orientation, adType AdType) int

	// Close stops every timer and abandons in-flight requests.
	// Close is safe to call multiple times.
	Close() error
}

// State is the session lifecycle state of a Client.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateReInitializing
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateReInitializing:
		return "reinitializing"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type session struct {
	token            string
	bufferMin        int
	rotationInterval time.Duration
}

// initArgs are the last arguments accepted by Init, replayed on re-init.
type initArgs struct {
	appKey       string
	adTypes      []AdType
	orientations []Orientation
}

type showState struct {
	adType AdType
	opts   *ShowOptions
}

type requestOptions struct {
	// rejectOnUnauthorized hands err_unauthorized to the caller instead of
	// emitting it.
	rejectOnUnauthorized bool
}

// client is the default Client implementation.
//
// Every state-touching section runs under mu. Work that must not run under
// mu (network I/O) is queued with deferLocked and started by unlock, and
// events queued while locked are dispatched by unlock once mu is released.
type client struct {
	config    *Config
	renderer  Renderer
	transport Transport
	clock     clock.Clock
	spawn     func(func())
	logger    logrus.FieldLogger
	observer  Observer
	strategy  RetryStrategy
	buffer    *AdBuffer
	events    *emitter

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	deferred []func()
	closed   bool
	state    State
	session  *session
	args     *initArgs
	params   Parameters
	retries  *retryQueue
	show     *showState
	rotation clock.Timer
	sweeper  clock.Timer
	refiller clock.Timer

	// initGen identifies the current Init attempt; session responses of
	// older attempts are ignored.
	initGen uint64
	// paramsGen changes with every new session and parameter change;
	// content responses of older generations are discarded.
	paramsGen uint64
}

// NewClient creates a client presenting ads through renderer. The client is
// idle until Init is called; the expiry sweep and refill check start right away.
//
// Returns an error only if the configuration is invalid.
func NewClient(config *Config, renderer Renderer) (Client, error) {
	return newClient(config, renderer)
}

func newClient(config *Config, renderer Renderer) (*client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if renderer == nil {
		return nil, fmt.Errorf("%w: renderer is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport := config.transport
	if transport == nil {
		t, err := newHTTPTransport(config)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		transport = t
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		config:    config,
		renderer:  renderer,
		transport: transport,
		clock:     config.clock,
		spawn:     config.spawn,
		logger:    config.Logger,
		observer:  config.Observer,
		strategy:  config.RetryStrategy,
		buffer:    NewAdBuffer(config.clock.Now, config.Logger),
		events:    newEmitter(config.Logger),
		ctx:       ctx,
		cancel:    cancel,
		retries:   newRetryQueue(config.clock),
	}

	renderer.Subscribe(c.onRendererEvent)

	c.lock()
	c.sweeper = clock.Every(c.clock, sweepInterval, c.sweep)
	c.refiller = clock.Every(c.clock, refillInterval, c.periodicRefill)
	c.unlock()

	return c, nil
}

func (c *client) lock() {
	c.mu.Lock()
}

// unlock releases mu, starts the work deferred while it was held and
// dispatches pending events.
func (c *client) unlock() {
	tasks := c.deferred
	c.deferred = nil
	c.mu.Unlock()

	for _, task := range tasks {
		c.spawn(task)
	}
	c.events.flush()
}

func (c *client) deferLocked(task func()) {
	c.deferred = append(c.deferred, task)
}

func (c *client) emitLocked(ev Event) {
	c.events.enqueue(ev)
}

func (c *client) emitErrorLocked(err error) {
	c.logger.WithError(err).Warn("Reporting ad SDK error")
	c.events.enqueue(Event{Type: EventError, Err: err})
}

// On registers a listener
func (c *client) On(listener Listener) func() {
	return c.events.on(listener)
}

// State returns the session state
func (c *client) State() State {
	c.lock()
	defer c.unlock()
	return c.state
}

// BufferCount returns the buffered creative count for the key
func (c *client) BufferCount(orientation Orientation, adType AdType) int {
	return c.buffer.Count(orientation, adType)
}

// Init validates the arguments and starts a new session
func (c *client) Init(appKey string, adTypes []AdType, orientations []Orientation) {
	width, height := c.screenSize()

	c.lock()
	defer c.unlock()

	if c.closed {
		return
	}

	args, err := newInitArgs(appKey, adTypes, orientations)
	if err != nil {
		c.emitErrorLocked(err)
		return
	}

	c.args = args
	c.state = StateInitializing
	c.initGen++
	c.startSessionLocked(c.initGen, width, height)
}

func newInitArgs(appKey string, adTypes []AdType, orientations []Orientation) (*initArgs, error) {
	if appKey == "" {
		return nil, validationError(ErrInvalidConfig, "app key cannot be empty")
	}
	if len(adTypes) == 0 {
		return nil, validationError(ErrInvalidAdType, "at least one ad type is required")
	}
	if len(orientations) == 0 {
		return nil, validationError(ErrInvalidConfig, "at least one orientation is required")
	}

	args := &initArgs{appKey: appKey}
	for _, t := range adTypes {
		if !t.Valid() {
			return nil, validationError(ErrInvalidAdType, "unknown ad type %q", t)
		}
		if !containsAdType(args.adTypes, t) {
			args.adTypes = append(args.adTypes, t)
		}
	}
	for _, o := range orientations {
		if !o.Valid() {
			return nil, validationError(ErrInvalidConfig, "unknown orientation %q", o)
		}
		if !containsOrientation(args.orientations, o) {
			args.orientations = append(args.orientations, o)
		}
	}
	return args, nil
}

// startSessionLocked drops the current session and requests a new one.
func (c *client) startSessionLocked(gen uint64, width, height int) {
	c.session = nil
	c.buffer.Empty()
	c.paramsGen++
	c.retries.cancel(pathSession)
	c.retries.cancel(pathContent)
	c.reportLevelsLocked()

	args := c.args
	body := sessionRequest{
		AppKey:       args.appKey,
		AppID:        c.config.AppID,
		Width:        width,
		Height:       height,
		Density:      c.config.Device.Density,
		Language:     c.config.Device.Language,
		Country:      c.config.Device.Country,
		TestMode:     c.config.TestMode,
		Orientations: args.orientations,
	}

	c.requestLocked(pathSession, body, requestOptions{}, func(raw json.RawMessage, err error) {
		if gen != c.initGen {
			return
		}
		if err != nil {
			c.state = StateFailed
			return
		}

		var resp sessionResponse
		if err := json.Unmarshal(raw, &resp); err != nil || resp.SessionToken == "" {
			if err == nil {
				err = fmt.Errorf("missing session_token")
			}
			c.state = StateFailed
			e := NewError(ErrorTypeUnknown, "decoding session response", fmt.Errorf("%w: %v", ErrInvalidResponse, err))
			e.Path = pathSession
			c.emitErrorLocked(e)
			return
		}

		c.session = &session{
			token:            resp.SessionToken,
			bufferMin:        resp.BufferLimits.Min,
			rotationInterval: time.Duration(resp.RotationInterval * float64(time.Second)),
		}
		c.buffer.Empty()
		c.paramsGen++
		c.state = StateActive

		c.logger.WithFields(logrus.Fields{
			"buffer_min":        c.session.bufferMin,
			"rotation_interval": c.session.rotationInterval,
		}).Info("Ad session initialized")

		c.emitLocked(Event{Type: EventInitialized})
		c.refillLocked(args.orientations, args.adTypes)
	})
}

// reinitLocked silently replaces a session the server no longer accepts.
func (c *client) reinitLocked() {
	if c.args == nil || c.state == StateInitializing || c.state == StateReInitializing {
		return
	}

	c.logger.Info("Session rejected, re-initializing")
	c.session = nil
	c.state = StateReInitializing
	c.initGen++
	gen := c.initGen

	c.deferLocked(func() {
		width, height := c.screenSize()

		c.lock()
		defer c.unlock()
		if c.closed || gen != c.initGen {
			return
		}
		c.startSessionLocked(gen, width, height)
	})
}

// requestLocked sends body to path and calls done with the raw response on
// success. Retryable failures are re-sent after the strategy's delay until
// they succeed; rejections are emitted as EventError (except err_unauthorized
// when opts asks for it) and then handed to done. done runs with mu held and
// is never called for a request whose retry was superseded.
func (c *client) requestLocked(path string, body interface{}, opts requestOptions, done func(json.RawMessage, error)) {
	c.sendLocked(path, body, opts, done, 1)
}

func (c *client) sendLocked(path string, body interface{}, opts requestOptions, done func(json.RawMessage, error), attempt int) {
	if c.closed {
		return
	}

	payload, err := json.Marshal(body)
	if err != nil {
		e := validationError(err, "encoding request body")
		e.Path = path
		c.emitErrorLocked(e)
		done(nil, e)
		return
	}

	headers := make(map[string]string, 1)
	if c.session != nil && c.session.token != "" {
		headers["Authorization"] = "Bearer " + c.session.token
	}

	c.deferLocked(func() {
		c.observer.OnRequestStart(path)
		start := c.clock.Now()
		resp, err := c.post(path, headers, payload)

		c.lock()
		defer c.unlock()
		c.handleResponseLocked(path, body, opts, done, attempt, c.clock.Now().Sub(start), resp, err)
	})
}

func (c *client) post(path string, headers map[string]string, payload []byte) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &NetworkError{Op: "POST " + path, Err: fmt.Errorf("transport panic: %v", r)}
		}
	}()
	return c.transport.Post(c.ctx, path, headers, payload)
}

func (c *client) handleResponseLocked(path string, body interface{}, opts requestOptions, done func(json.RawMessage, error), attempt int, elapsed time.Duration, resp *Response, transportErr error) {
	if c.closed {
		return
	}

	reqErr := classifyResponse(path, resp, transportErr)
	c.observer.OnRequestEnd(path, elapsed, reqErr)

	if reqErr == nil {
		done(json.RawMessage(resp.Body), nil)
		return
	}

	if c.strategy.ShouldRetry(reqErr) {
		delay := c.strategy.NextInterval(reqErr)
		_, replaced := c.retries.schedule(path, body, attempt, delay, func(p *pendingRequest) {
			c.lock()
			defer c.unlock()
			if c.closed || !c.retries.take(p) {
				return
			}
			c.sendLocked(path, body, opts, done, p.attempt+1)
		})
		c.observer.OnRetryScheduled(path, attempt, delay, reqErr)
		c.logger.WithFields(logrus.Fields{
			"path":     path,
			"attempt":  attempt,
			"delay":    delay,
			"replaced": replaced,
		}).WithError(reqErr).Debug("Request failed, retry scheduled")
		return
	}

	if opts.rejectOnUnauthorized && IsUnauthorized(reqErr) {
		done(nil, reqErr)
		return
	}

	c.emitErrorLocked(reqErr)
	done(nil, reqErr)
}

// classifyResponse turns a transport result into nil or an *Error. A body
// carrying an error envelope wins over the HTTP status; a non-2xx status
// without one counts as a transport failure.
func classifyResponse(path string, resp *Response, transportErr error) error {
	if transportErr == nil && resp == nil {
		transportErr = fmt.Errorf("empty response")
	}
	if transportErr != nil {
		netErr, ok := transportErr.(*NetworkError)
		if !ok {
			netErr = &NetworkError{Op: "POST " + path, Err: transportErr}
		}
		e := netErr.ToError()
		e.Path = path
		return e
	}

	var env errorEnvelope
	if err := json.Unmarshal(resp.Body, &env); err == nil && env.Error != "" {
		return env.toError(path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		netErr := &NetworkError{Op: "POST " + path, StatusCode: resp.StatusCode}
		e := netErr.ToError()
		e.Path = path
		return e
	}
	return nil
}

// sweep drops expired creatives
func (c *client) sweep() {
	defer c.recoverBackground("expiry sweep")

	c.lock()
	defer c.unlock()
	if n := c.buffer.Purge(); n > 0 {
		c.logger.WithField("removed", n).Debug("Purged expired creatives")
		c.reportLevelsLocked()
	}
}

func (c *client) recoverBackground(task string) {
	if r := recover(); r != nil {
		c.logger.WithFields(logrus.Fields{
			"task":  task,
			"panic": r,
		}).Error("Background task panicked")
	}
}

func (c *client) reportLevelsLocked() {
	if c.args == nil {
		return
	}
	for _, o := range c.args.orientations {
		for _, t := range c.args.adTypes {
			c.observer.OnBufferLevel(Key{Orientation: o, AdType: t}, c.buffer.Count(o, t))
		}
	}
}

func (c *client) onRendererEvent(ev RendererEvent) {
	switch ev {
	case RendererInterstitialClosed:
		c.events.enqueue(Event{Type: EventInterstitialClosed, AdType: AdTypeInterstitial})
	case RendererBannerHidden:
		c.events.enqueue(Event{Type: EventBannerHidden, AdType: AdTypeBanner})
	default:
		c.logger.WithField("event", ev).Warn("Ignoring unknown renderer event")
		return
	}
	c.events.flush()
}

// Close stops timers and pending retries
func (c *client) Close() error {
	c.lock()
	if c.closed {
		c.unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	c.sweeper.Stop()
	c.refiller.Stop()
	c.stopRotationLocked()
	c.retries.cancelAll()
	c.cancel()
	c.unlock()

	if t, ok := c.transport.(*httpTransport); ok {
		t.close()
	}
	return nil
}

func containsAdType(list []AdType, t AdType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func containsOrientation(list []Orientation, o Orientation) bool {
	for _, v := range list {
		if v == o {
			return true
		}
	}
	return false
}
