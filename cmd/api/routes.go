package main

import (
	"callrelay/internal/auth"
	"callrelay/internal/directory"
	"callrelay/internal/httpapi"
	"callrelay/internal/ratelimit"
	"callrelay/internal/signaling"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	AuthManager *auth.Manager
	Directory   directory.Directory
	Coordinator *signaling.Coordinator
	Limiter     ratelimit.Limiter
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	api := httpapi.Handlers{Auth: deps.AuthManager, Directory: deps.Directory}
	calls := signaling.Handlers{Coordinator: deps.Coordinator}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// Token issuance is rate limited by client IP (no identity yet).
	authGroup := v1.Group("/auth")
	authGroup.Use(ratelimit.Middleware(deps.Limiter))
	{
		authGroup.POST("/login", api.Login)
		authGroup.POST("/refresh", api.Refresh)
	}

	// protected API group
	protected := v1.Group("")
	protected.Use(auth.RequireAccessToken(deps.AuthManager))
	protected.Use(ratelimit.Middleware(deps.Limiter))
	{
		protected.GET("/users/me", api.Me)
		protected.PUT("/devices/token", api.RegisterDeviceToken)

		// CALL SIGNALING routes
		callGroup := protected.Group("/calls")
		{
			callGroup.POST("/invite", calls.Invite)
			callGroup.POST("/:call_id/offer", calls.Offer)
			callGroup.POST("/:call_id/answer", calls.Answer)
			callGroup.POST("/:call_id/hold", calls.Hold)
			callGroup.POST("/:call_id/resume", calls.Resume)
			callGroup.POST("/:call_id/ice", calls.IceCandidate)
			callGroup.POST("/:call_id/end", calls.End)
			callGroup.GET("/:call_id/events", calls.Events)
		}
	}
}
