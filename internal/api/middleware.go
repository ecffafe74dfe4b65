package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// TokenParser verifies bearer tokens; *auth.TokenManager satisfies it
type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

// AdminChecker looks up the current admin flag of a user
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// authenticate requires a valid bearer token and stores the caller's
// identity on the context. An admin claim is confirmed against roles so a
// demoted admin loses access before the token expires.
func authenticate(tokens TokenParser, roles AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondError(c, models.ErrUnauthenticated)
			c.Abort()
			return
		}

		id, err := tokens.Parse(token)
		if err != nil {
			respondError(c, models.ErrUnauthenticated)
			c.Abort()
			return
		}

		if id.IsAdmin {
			admin, err := roles.IsAdmin(c.Request.Context(), id.UserID)
			if err != nil {
				respondError(c, err)
				c.Abort()
				return
			}
			id.IsAdmin = admin
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// requireAdmin rejects non-admin callers; it must run after authenticate
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity(c).IsAdmin {
			respondError(c, models.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
