package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/nanolite/internal/auditcontext"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/claim/pipeline"
	obscontext "github.com/smallbiznis/nanolite/internal/observability/context"
	"github.com/smallbiznis/nanolite/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	contextUserIDKey    = "user_id"
	contextSessionIDKey = "session_id"
)

// AuthRequired resolves the session token to a user and binds the actor to
// the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok || strings.TrimSpace(token) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, user, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actor := authdomain.ActorFromUser(user)
		userID := actor.UserID.String()

		ctx := c.Request.Context()
		ctx = orgcontext.WithActor(ctx, actor)
		ctx = auditcontext.WithActor(ctx, "user", userID)
		ctx = obscontext.WithActor(ctx, "user", userID)
		ctx = obscontext.WithCompanyID(ctx, actor.CompanyID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextUserIDKey, userID)
		c.Set(contextSessionIDKey, session.ID)
		c.Next()
	}
}

func (s *Server) actorFromContext(c *gin.Context) (authdomain.Actor, bool) {
	return orgcontext.ActorFromContext(c.Request.Context())
}

// authorize gates a route on a casbin object/action for the current actor.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := s.actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		err := s.authzSvc.Authorize(c.Request.Context(), pipeline.Subject(actor), actor.CompanyID.String(), object, action)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// WriteRateLimit throttles record writes per user. It is a no-op when the
// limiter is not configured.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		userID := c.GetString(contextUserIDKey)
		result, err := s.limiter.AllowWrite(c.Request.Context(), userID)
		if err != nil {
			// Fail open when Redis misbehaves.
			s.log.Warn("write rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			s.metrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath(), "write")
			AbortWithError(c, &RateLimitedError{RetryAfter: result.RetryAfter})
			return
		}
		c.Next()
	}
}

// LoginRateLimit throttles login attempts per client address.
func (s *Server) LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		result, err := s.limiter.AllowLogin(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("login rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			s.metrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath(), "login")
			AbortWithError(c, &RateLimitedError{RetryAfter: result.RetryAfter})
			return
		}
		c.Next()
	}
}
