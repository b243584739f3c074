package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"marketgateway/internal/apperr"
	"marketgateway/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

func errorFields(c *gin.Context, e *apperr.Error) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("kind", string(e.Kind)),
		zap.String("message", e.Message),
		zap.NamedError("cause", e.Cause),
	}
}

// accessLog logs one line per request. Query strings are left out.
func (s *server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.Int("size", c.Writer.Size()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("request", fields...)
		default:
			s.logger.Info("request", fields...)
		}
	}
}

// recovery turns a panic into a 500 envelope. The stack is only exposed
// outside production.
func (s *server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := debug.Stack()
			s.logger.Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("path", c.Request.URL.Path),
				zap.ByteString("stack", stack),
			)

			body := envelope{
				Success:   false,
				Error:     string(apperr.KindInternal),
				Message:   "Internal server error",
				Timestamp: now(),
			}
			if !s.production {
				body.Details = fmt.Sprintf("%v\n%s", rec, stack)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}

func (s *server) cors() gin.HandlerFunc {
	allowAll := len(s.corsOrigins) == 0
	allowed := make(map[string]bool, len(s.corsOrigins))
	for _, o := range s.corsOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", apperr.New(apperr.KindAuthentication, "Authorization header is required")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", apperr.New(apperr.KindAuthentication, "Invalid authorization header format. Use: Bearer <token>")
	}
	return strings.TrimSpace(token), nil
}

// requireAuth validates the access token against the live session.
func (s *server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			s.respondError(c, err)
			return
		}

		id, err := s.auth.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

// rateLimit throttles the route per client IP.
func (s *server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		d := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(d.RetryAfter.Round(time.Second).Seconds())
			c.Header("Retry-After", strconv.Itoa(secs))
			s.logger.Warn("auth rate limit exceeded", zap.String("ip", c.ClientIP()))
			s.respondError(c, apperr.New(apperr.KindRateLimit, "Too many authentication attempts, please try again later"))
			return
		}
		c.Next()
	}
}
