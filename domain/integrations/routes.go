package integrations

import (
	"github.com/labstack/echo/v4"

	"github.com/voxlane/voxlane-core/pkg/auth"
)

// RegisterRoutes registers integration lifecycle routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	// The OAuth callback carries its identity in the state parameter and
	// must stay reachable without a session.
	e.GET("/api/oauth/:provider/callback", h.Callback)

	g := e.Group("/api/integrations")
	g.Use(authMiddleware.RequireAuth())

	g.GET("/providers", h.ListProviders)
	g.POST("/connect/:provider", h.Connect)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Disconnect)
}
