// Package bookings provides the booking webhook bounded context module.
// This file defines the module that encapsulates its setup and route registration.
package bookings

import (
	"github.com/mfeltenmark/freelance-crm/internal/bookings/handler"
	"github.com/mfeltenmark/freelance-crm/internal/bookings/repository"
	"github.com/mfeltenmark/freelance-crm/internal/bookings/service"
	"github.com/mfeltenmark/freelance-crm/internal/events"
	apphttp "github.com/mfeltenmark/freelance-crm/internal/http"
	"github.com/mfeltenmark/freelance-crm/platform/config"
	"github.com/mfeltenmark/freelance-crm/platform/httpkit"
	"github.com/mfeltenmark/freelance-crm/platform/logger"
	"github.com/mfeltenmark/freelance-crm/platform/validator"
)

// ModuleConfig is the configuration the bookings module reads.
type ModuleConfig interface {
	config.WebhookConfig
	config.BookingConfig
}

// Module is the bookings bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	limiter *httpkit.IPRateLimiter
	tokens  []config.IntegrationToken
	log     *logger.Logger
}

// NewModule creates and initializes the bookings module with all its dependencies.
func NewModule(pool repository.TxBeginner, eventBus events.Bus, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, cfg.GetBookingLocation(), log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		limiter: httpkit.PerMinute(cfg.GetWebhookRateLimitPerMinute(), log),
		tokens:  cfg.GetWebhookTokens(),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "bookings"
}

// Service exposes the booking service for in-process callers.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the webhook. Rate limiting runs before authentication
// so rejected secrets still count against the caller.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	incoming := ctx.API.Group("/bookings/incoming")
	incoming.Use(m.limiter.RateLimit(), WebhookAuthMiddleware(m.tokens, m.log))
	incoming.POST("", m.handler.HandleIncoming)
	incoming.PATCH("", m.handler.HandleUpdate)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
