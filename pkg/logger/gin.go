package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// quietPaths are polled by health checks and scrapers; their summaries log at debug.
var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

// Middleware tags every request with a request id (echoed in X-Request-Id)
// and, on instance routes, the instance_id path parameter. It logs one
// summary line per request.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		if id := c.Param("instance_id"); id != "" {
			reqLogger = reqLogger.With("instance_id", id)
		}
		set(c, reqLogger)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log := FromGin(c)
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case len(c.Errors) > 0:
			log.Error("request", append(attrs, "errors", c.Errors.String())...)
		case c.Writer.Status() >= 500:
			log.Warn("request", attrs...)
		case quietPaths[path]:
			log.Debug("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

// Annotate adds attributes to the request logger for the rest of the request,
// including the summary line written by Middleware.
func Annotate(c *gin.Context, args ...any) {
	set(c, FromGin(c).With(args...))
}

// FromGin pulls the request-scoped logger from the Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return From(c.Request.Context())
}

func set(c *gin.Context, l *slog.Logger) {
	c.Set(ginLoggerKey, l)
	c.Request = c.Request.WithContext(With(c.Request.Context(), l))
}
