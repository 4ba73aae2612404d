package sync

import (
	"github.com/labstack/echo/v4"

	"github.com/voxlane/voxlane-core/pkg/auth"
)

// RegisterRoutes registers sync run and linked resource routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/integrations/:id")
	g.Use(authMiddleware.RequireAuth())

	g.POST("/sync", h.TriggerSync)

	g.GET("/runs", h.ListRuns)
	g.GET("/runs/latest", h.LatestRun)
	g.GET("/runs/:runId", h.GetRun)
	g.POST("/runs/:runId/cancel", h.CancelRun)

	g.GET("/resources", h.ListResources)
	g.POST("/resources", h.LinkResource)
	g.PATCH("/resources/:resourceId", h.UpdateResource)
	g.DELETE("/resources/:resourceId", h.UnlinkResource)
}
