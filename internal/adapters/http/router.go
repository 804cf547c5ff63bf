// Package http is the gin HTTP surface: call control, media service
// callbacks and the websocket entrypoint.
package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/adapters/signal"
	"github.com/dkeye/podcall/internal/app/guard"
	"github.com/dkeye/podcall/internal/app/orch"
	"github.com/dkeye/podcall/internal/app/recording"
	"github.com/dkeye/podcall/internal/config"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/metrics"
)

const sessionCookie = "PodcallSession"

// Server holds what the handlers need.
type Server struct {
	Orch     *orch.Orchestrator
	Signal   *signal.SignalWSController
	Recorder *recording.Coordinator
	Catalog  core.Catalog
	Access   core.AccessControl
	Identity core.IdentityVerifier
	Failures core.FailureTracker
	Limiter  *guard.RateLimiter
	Metrics  *metrics.Metrics

	PublicURL      string
	CallbackSecret string
}

func SetupRouter(ctx context.Context, cfg *config.Config, s *Server) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionCookie, store))
	r.Use(s.IdentityMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.Orch.Sessions.Count()})
	})
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	authGroup := r.Group("/auth")
	authGroup.POST("/session", s.handleCreateAuthSession)
	authGroup.DELETE("/session", s.handleDeleteAuthSession)

	call := r.Group("/call")
	call.POST("/start", RequireUser(), s.handleStartCall)
	call.GET("/session", RequireUser(), s.handleGetSession)
	call.GET("/by-code/:code", s.JoinGuard(), s.handleByCode)
	call.GET("/join-info/:token", s.JoinGuard(), s.handleJoinInfo)

	internal := call.Group("/internal", s.CallbackSecretMiddleware())
	internal.POST("/recording-check-storage", s.handleCheckStorage)
	internal.POST("/recording-error", s.handleRecordingError)
	internal.POST("/recording-segment", s.handleRecordingSegment)

	call.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Msg("ws signal endpoint hit")
		s.Signal.HandleSignal(ctx, c, CurrentUser(c))
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
