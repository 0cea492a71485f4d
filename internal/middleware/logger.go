package middleware

import (
	"strconv"
	"time"

	"github.com/condohub/condofee/internal/auth"
	"github.com/condohub/condofee/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs every request through zap
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if claims, ok := auth.ClaimsFrom(c); ok {
			fields = append(fields, zap.Int64("resident_id", claims.ResidentID))
		}

		logger.Info("request", fields...)

		for _, e := range c.Errors {
			logger.Error("request error", zap.String("path", path), zap.Error(e.Err))
		}
	}
}

// Metrics records Prometheus request metrics keyed by route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
