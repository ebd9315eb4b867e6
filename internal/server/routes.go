package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/quote", h.Quote)
	v1.GET("/executions/recent", h.RecentExecutions)

	orders := v1.Group("/orders")
	orders.POST("/hash", h.OrderHash)
	orders.POST("/status", h.OrderStatuses)
	orders.POST("/revert", h.RevertOrder)

	// Signing and broadcasting endpoints are rate limited
	solverGroup := v1.Group("/solver")
	solverGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(2), // 2 batches per second
		Burst:     4,
		ExpiresIn: time.Minute,
	})))
	solverGroup.POST("/fill", h.Fill)

	rebalanceGroup := v1.Group("/rebalance")
	rebalanceGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     3,
		ExpiresIn: 2 * time.Minute,
	})))
	rebalanceGroup.POST("/instructions", h.RebalanceInstructions)
	rebalanceGroup.POST("/execute", h.RebalanceExecute)

	// Chain switch CRUD endpoints
	switchGroup := v1.Group("/chains/switches")
	switchGroup.GET("", h.SwitchesList)
	switchGroup.GET("/:chain", h.SwitchesGet)
	switchGroup.PUT("/:chain", h.SwitchesSet)
	switchGroup.DELETE("/:chain", h.SwitchesDelete)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
