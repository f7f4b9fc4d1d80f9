package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"debt-collector/internal/auth"
	"debt-collector/internal/dialer"
	"debt-collector/internal/rbac"
	"debt-collector/internal/reporting"
	"debt-collector/internal/tenant"
	"debt-collector/pkg/logger"
)

// ManualCycleAudit records operator-requested cycles.
type ManualCycleAudit interface {
	LogManualCycle(ctx context.Context, instanceID, actorID, actorRole string, debug bool) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Instances tenant.Repository
	Cycles    dialer.CycleRunner
	Reporting *reporting.Service
	Audit     ManualCycleAudit
}

// --- Reporting ---

// DialerSummary aggregates dispatch activity for one instance.
// Query: from, to (RFC 3339). Defaults to the last 24 hours.
func (h Handlers) DialerSummary(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	instanceID := c.Param("instance_id")

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		to = t
	}

	sum, err := h.Reporting.DialerSummary(c.Request.Context(), reporting.DialerSummaryRequest{
		InstanceID: instanceID,
		Range:      reporting.TimeRange{From: from, To: to},
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("dialer summary", "instance_id", instanceID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Cycles ---

type runCycleRequest struct {
	Debug bool `json:"debug"`
}

// RunCycle runs one dispatch cycle for the instance now.
// RBAC: operator or admin. Debug (window bypass) is honoured for admin only.
func (h Handlers) RunCycle(c *gin.Context) {
	if h.Instances == nil || h.Cycles == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialer not configured"})
		return
	}
	ctx := c.Request.Context()
	instanceID := c.Param("instance_id")
	caller, _ := auth.IdentityFrom(ctx)

	var req runCycleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if req.Debug && !rbac.IsAdmin(caller.Role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "debug cycles require admin"})
		return
	}

	inst, err := h.Instances.Get(ctx, instanceID)
	if errors.Is(err, tenant.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("load instance", "instance_id", instanceID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "instance lookup failed"})
		return
	}
	if !inst.Active {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "instance inactive"})
		return
	}
	if req.Debug {
		inst.DebugCalls = true
	}

	if h.Audit != nil {
		if err := h.Audit.LogManualCycle(ctx, instanceID, caller.OperatorID, caller.Role, req.Debug); err != nil {
			logger.FromGin(c).Warn("audit manual cycle", "instance_id", instanceID, "err", err)
		}
	}

	log := logger.FromGin(c).With("instance_id", instanceID)
	report, err := h.Cycles.RunCycle(logger.With(ctx, log), inst)
	if errors.Is(err, dialer.ErrConfiguration) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": report})
		return
	}
	if err != nil {
		log.Error("manual cycle", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "cycle failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Convenience middleware bundles.

func RequireInstanceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireInstanceScope("instance_id"), rbac.RequireAnyRole(roles...)}
}
