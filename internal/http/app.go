// Package http holds the contracts between cmd/api and the route-owning
// modules. The gin engine itself is assembled in http/router.
package http

import (
	"context"

	"github.com/mfeltenmark/freelance-crm/internal/events"
	"github.com/mfeltenmark/freelance-crm/platform/config"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module mounts one bounded context's endpoints under /api.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is handed to every Module during router construction.
type RouterContext struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// HealthChecker backs /api/ready. A nil checker means always ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is everything the router needs from the composition root.
type App struct {
	Config   config.HTTPConfig
	Logger   *logger.Logger
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
