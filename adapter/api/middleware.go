package api

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// Header names.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

const roleContextKey = "role"

// Claims are the JWT claims studiobook reads.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequestContext stamps request and correlation ids on the request context
// and logs each request once it completes.
func RequestContext(logger *slog.Logger, metrics observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := observability.WithRequestID(c.Request.Context(), c.GetHeader(HeaderRequestID))
		ctx = observability.WithCorrelationID(ctx, c.GetHeader(HeaderCorrelationID))
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, observability.RequestIDFromContext(ctx))

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.Counter(observability.MetricHTTPRequests, 1,
			observability.T("route", route), observability.T("status", status))
		metrics.Timing(observability.MetricHTTPDuration, elapsed, observability.T("route", route))

		logger.InfoContext(ctx, "http request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			observability.DurationKey, elapsed.Milliseconds(),
		)
	}
}

// JWTAuth verifies an HS256 bearer token and stores the subject and role.
// An empty secret disables authentication and grants every request the
// admin role.
func JWTAuth(secret string, logger *slog.Logger) gin.HandlerFunc {
	if secret == "" {
		logger.Warn("JWT secret not set, API authentication is disabled")
		return func(c *gin.Context) {
			c.Set(roleContextKey, RoleAdmin)
			c.Next()
		}
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(ErrUnauthorized.Status, ErrUnauthorized)
			return
		}

		claims := &Claims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			if !errors.Is(err, jwt.ErrTokenExpired) {
				logger.Debug("rejected bearer token", "error", err)
			}
			c.AbortWithStatusJSON(ErrUnauthorized.Status, ErrUnauthorized)
			return
		}

		c.Set(roleContextKey, claims.Role)
		if claims.Subject != "" {
			c.Request = c.Request.WithContext(observability.WithActor(c.Request.Context(), claims.Subject))
		}
		c.Next()
	}
}

// RequireRole rejects requests whose role is not in roles with 403 before
// any handler runs.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(roleContextKey)
		if role == "" || !slices.Contains(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrForbidden)
			return
		}
		c.Next()
	}
}
