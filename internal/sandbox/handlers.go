package sandbox

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/birb-ads/internal/clock"
	"github.com/birbparty/birb-ads/internal/telemetry"
)

const (
	endpointSession = "/v1/session"
	endpointContent = "/v1/content"
)

// Handlers serves the two ad server endpoints
type Handlers struct {
	cfg          *Config
	store        Store
	metrics      *telemetry.ServerMetrics
	logger       logrus.FieldLogger
	clock        clock.Clock
	appKeys      map[string]struct{}
	creatives    *creativeFactory
	contentCalls atomic.Int64
	startTime    time.Time
}

// NewHandlers creates the handlers
func NewHandlers(cfg *Config, store Store, metrics *telemetry.ServerMetrics, logger logrus.FieldLogger, clk clock.Clock) *Handlers {
	keys := make(map[string]struct{})
	for _, k := range cfg.AppKeyList() {
		keys[k] = struct{}{}
	}
	return &Handlers{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		logger:  logger,
		clock:   clk,
		appKeys: keys,
		creatives: &creativeFactory{
			cdnBaseURL: strings.TrimRight(cfg.CDNBaseURL, "/"),
			ttl:        cfg.CreativeTTL,
			perPair:    cfg.CreativesPerPair,
		},
		startTime: clk.Now(),
	}
}

// reject answers with an error envelope
func (h *Handlers) reject(c *fiber.Ctx, endpoint string, status int, code string) error {
	h.metrics.RecordRejection(endpoint, code)
	return c.Status(status).JSON(ErrorEnvelope{Error: code})
}

// CreateSession handles POST /v1/session
func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return h.reject(c, endpointSession, fiber.StatusBadRequest, CodeInvalidData)
	}

	if _, ok := h.appKeys[req.AppKey]; !ok {
		h.logger.WithField("app_id", req.AppID).Warn("Session requested with unknown app key")
		return h.reject(c, endpointSession, fiber.StatusUnauthorized, CodeUnauthorized)
	}

	if req.Width <= 0 || req.Height <= 0 || len(req.Orientations) == 0 {
		return h.reject(c, endpointSession, fiber.StatusBadRequest, CodeInvalidData)
	}
	for _, o := range req.Orientations {
		if !validOrientation(o) {
			return h.reject(c, endpointSession, fiber.StatusBadRequest, CodeInvalidData)
		}
	}

	session := &Session{
		Token:        uuid.NewString(),
		AppKey:       req.AppKey,
		AppID:        req.AppID,
		Width:        req.Width,
		Height:       req.Height,
		Orientations: req.Orientations,
		TestMode:     req.TestMode,
		CreatedAt:    h.clock.Now(),
	}
	if err := h.store.CreateSession(ctx, session, h.cfg.SessionTTL); err != nil {
		telemetry.WithContext(ctx).WithError(err).Error("Failed to store session")
		return h.reject(c, endpointSession, fiber.StatusInternalServerError, CodeInternalServerError)
	}

	h.metrics.RecordSessionCreated()
	if n, err := h.store.CountSessions(ctx); err == nil {
		h.metrics.UpdateActiveSessions(n)
	}

	telemetry.WithContext(ctx).WithFields(logrus.Fields{
		"app_id":       req.AppID,
		"orientations": req.Orientations,
		"test_mode":    req.TestMode,
	}).Info("Session created")

	return c.JSON(SessionResponse{
		SessionToken:     session.Token,
		BufferLimits:     BufferLimits{Min: h.cfg.BufferMin},
		RotationInterval: h.cfg.RotationInterval.Seconds(),
	})
}

// GetContent handles POST /v1/content
func (h *Handlers) GetContent(c *fiber.Ctx) error {
	ctx := c.UserContext()

	session, err := h.authenticate(ctx, c.Get(fiber.HeaderAuthorization))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return h.reject(c, endpointContent, fiber.StatusUnauthorized, CodeUnauthorized)
		}
		telemetry.WithContext(ctx).WithError(err).Error("Failed to load session")
		return h.reject(c, endpointContent, fiber.StatusInternalServerError, CodeInternalServerError)
	}

	if h.cfg.RateLimit > 0 {
		count, resetIn, err := h.store.CountRequest(ctx, session.Token, h.cfg.RateWindow)
		if err != nil {
			telemetry.WithContext(ctx).WithError(err).Error("Failed to count request")
			return h.reject(c, endpointContent, fiber.StatusInternalServerError, CodeInternalServerError)
		}
		if count > int64(h.cfg.RateLimit) {
			wait := math.Max(1, math.Ceil(resetIn.Seconds()))
			h.metrics.RecordRejection(endpointContent, CodeRateLimited)
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorEnvelope{Error: CodeRateLimited, Wait: &wait})
		}
	}

	if n := h.contentCalls.Add(1); h.cfg.FaultEvery > 0 && n%int64(h.cfg.FaultEvery) == 0 {
		h.logger.WithField("call", n).Debug("Injecting server error")
		return h.reject(c, endpointContent, fiber.StatusInternalServerError, CodeInternalServerError)
	}

	var req ContentRequest
	if err := c.BodyParser(&req); err != nil || len(req.Combinations) == 0 {
		return h.reject(c, endpointContent, fiber.StatusBadRequest, CodeInvalidData)
	}
	for o, types := range req.Combinations {
		if !validOrientation(o) || !contains(session.Orientations, o) || len(types) == 0 {
			return h.reject(c, endpointContent, fiber.StatusBadRequest, CodeInvalidData)
		}
		for _, t := range types {
			if !validAdType(t) {
				return h.reject(c, endpointContent, fiber.StatusBadRequest, CodeInvalidData)
			}
		}
	}

	items := h.creatives.generate(session, req.Combinations, req.ExtraParameters, h.clock.Now())
	for _, item := range items {
		h.metrics.RecordCreativeServed(item.Ad.Orientation, item.Ad.Type)
	}

	return c.JSON(ContentResponse{Result: items})
}

// authenticate resolves the bearer token to a session
func (h *Handlers) authenticate(ctx context.Context, header string) (*Session, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, ErrSessionNotFound
	}
	return h.store.GetSession(ctx, token)
}

// Health handles GET /health
func (h *Handlers) Health(c *fiber.Ctx) error {
	checks := map[string]string{"store": "healthy"}
	status := "healthy"
	code := fiber.StatusOK

	if err := h.store.Ping(c.UserContext()); err != nil {
		checks["store"] = "unhealthy: " + err.Error()
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(HealthResponse{
		Status:  status,
		Service: "birb-ads-sandbox",
		Uptime:  h.clock.Now().Sub(h.startTime).Round(time.Second).String(),
		Checks:  checks,
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
