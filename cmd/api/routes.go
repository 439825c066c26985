package main

import (
	"context"
	"net/http"

	"crm-platform/internal/httpapi"
	"crm-platform/internal/provider"
	"crm-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	authMW   gin.HandlerFunc
	api      httpapi.Handlers
	webhooks provider.WebhookHandlers
	health   func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.health != nil {
			if err := deps.health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These should be protected by provider signature validation in
	// production. They always ack 200; outcomes are observable via logs and
	// the audit trail only.
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/voice/status", deps.webhooks.VoiceStatus)
		webhooks.POST("/voice/inbound", deps.webhooks.VoiceInbound)
		webhooks.POST("/messaging/status", deps.webhooks.MessagingStatus)
		webhooks.POST("/messaging/inbound", deps.webhooks.MessagingInbound)
	}

	// AUTH routes (token issuance).
	r.POST("/v1/auth/login", deps.api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	{
		anyRole := rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleAgent)

		sessionsGroup := v1.Group("/sessions")
		sessionsGroup.Use(anyRole)
		{
			sessionsGroup.POST("", deps.api.InitiateSession)
			sessionsGroup.GET("", deps.api.ListSessions)
			sessionsGroup.GET("/:session_id", deps.api.GetSession)
			sessionsGroup.POST("/:session_id/terminate", deps.api.TerminateSession)
		}

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager))
		{
			reports.GET("/sessions/summary", deps.api.SessionsSummary)
		}
	}
}
