package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/domain"
)

const (
	userKey        = "user_id"
	callbackHeader = "X-Callback-Secret"
)

// IdentityMiddleware resolves the signed-in user from the cookie session or
// a bearer token. The access_token query parameter is accepted for
// websocket upgrades, which cannot carry headers from browsers.
func (s *Server) IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := sessions.Default(c).Get(userKey).(string); ok && uid != "" {
			c.Set(userKey, domain.UserID(uid))
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token != "" && s.Identity != nil {
			uid, err := s.Identity.VerifyIdentity(c.Request.Context(), token)
			if err == nil {
				c.Set(userKey, uid)
			} else {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("bearer rejected")
			}
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// CurrentUser is the identity resolved by IdentityMiddleware, empty if none.
func CurrentUser(c *gin.Context) domain.UserID {
	uid, _ := c.Get(userKey)
	id, _ := uid.(domain.UserID)
	return id
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == "" {
			abortError(c, http.StatusUnauthorized, "Sign in required")
			return
		}
		c.Next()
	}
}

// JoinGuard rate-limits the unauthenticated lookup routes per IP and refuses
// banned IPs.
func (s *Server) JoinGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if s.Failures != nil && s.Failures.IsBanned(ip) {
			s.Metrics.JoinFailed("banned")
			abortError(c, http.StatusTooManyRequests, "Too many failed attempts. Try again later.")
			return
		}
		if s.Limiter != nil && !s.Limiter.Allow(ip) {
			s.Metrics.JoinFailed("rate_limited")
			abortError(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// CallbackSecretMiddleware admits only the media service.
func (s *Server) CallbackSecretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(callbackHeader)
		if s.CallbackSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.CallbackSecret)) != 1 {
			log.Warn().Str("module", "adapters.http").Str("ip", c.ClientIP()).Str("path", c.FullPath()).Msg("callback secret mismatch")
			abortError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}

// recordFailure counts a failed lookup toward the caller's ban.
func (s *Server) recordFailure(c *gin.Context, reason string) {
	s.Metrics.JoinFailed(reason)
	if s.Failures != nil {
		s.Failures.RecordFailure(c.ClientIP())
	}
}
