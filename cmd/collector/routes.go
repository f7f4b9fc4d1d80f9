package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"debt-collector/internal/httpapi"
	"debt-collector/internal/metrics"
	"debt-collector/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, a *app, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if a.stores.ping != nil {
			if err := a.stores.ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	h := httpapi.Handlers{
		Instances: a.stores.instances,
		Cycles:    a.engine,
		Reporting: a.reporting,
		Audit:     a.audit,
	}

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		dialer := v1.Group("/instances/:instance_id/dialer")
		dialer.GET("/summary", append(httpapi.RequireInstanceAndAnyRole(rbac.RoleViewer, rbac.RoleOperator), h.DialerSummary)...)
		dialer.POST("/cycles", append(httpapi.RequireInstanceAndAnyRole(rbac.RoleOperator), h.RunCycle)...)
	}
}
