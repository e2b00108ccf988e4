package rest

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// requestID reuses an incoming X-Request-Id or generates one, and echoes it back.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		}

		switch {
		case status >= 500:
			s.logger.Error(ctx, "request completed", args...)
		case status >= 400:
			s.logger.Warn(ctx, "request completed", args...)
		default:
			s.logger.Debug(ctx, "request completed", args...)
		}
	}
}

func labels(c *gin.Context) metrics.Labels {
	return metrics.Labels{
		Method:   c.Request.Method,
		Service:  ServiceName,
		Endpoint: c.Request.URL.Path,
		Status:   strconv.Itoa(c.Writer.Status()),
	}
}

// requestMetrics records the request count and duration of every request.
func (s *HTTPServer) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l := labels(c)
		s.metrics.ObserveDuration(c.Request.Context(), l, time.Since(start))
		s.metrics.IncRequestCount(c.Request.Context(), l)
	}
}

// authMetrics counts a success iff the handler answered 200.
func (s *HTTPServer) authMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := metrics.AuthFailure
		if c.Writer.Status() == 200 {
			status = metrics.AuthSuccess
		}
		s.metrics.ObserveAuth(c.Request.Context(), status, labels(c))
	}
}

func (s *HTTPServer) readyMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.metrics.IncReadyCount(c.Request.Context(), labels(c))
	}
}
