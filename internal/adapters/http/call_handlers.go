package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
)

type startCallRequest struct {
	EpisodeID string `json:"episodeId" binding:"required"`
	Password  string `json:"password"`
}

type startCallResponse struct {
	Token             string           `json:"token"`
	SessionID         domain.SessionID `json:"sessionId"`
	JoinURL           string           `json:"joinUrl"`
	JoinCode          string           `json:"joinCode"`
	WebRTCURL         string           `json:"webrtcUrl,omitempty"`
	RoomID            string           `json:"roomId,omitempty"`
	WebRTCUnavailable bool             `json:"webrtcUnavailable,omitempty"`
}

type sessionView struct {
	SessionID        domain.SessionID     `json:"sessionId"`
	Token            string               `json:"token"`
	JoinURL          string               `json:"joinUrl"`
	JoinCode         string               `json:"joinCode,omitempty"`
	EpisodeID        string               `json:"episodeId"`
	RoomID           string               `json:"roomId,omitempty"`
	PasswordRequired bool                 `json:"passwordRequired"`
	Participants     []domain.Participant `json:"participants"`
	CreatedAt        time.Time            `json:"createdAt"`
}

type joinInfoResponse struct {
	Podcast          string `json:"podcast"`
	Episode          string `json:"episode"`
	HostName         string `json:"hostName"`
	PasswordRequired bool   `json:"passwordRequired"`
	ArtworkURL       string `json:"artworkUrl,omitempty"`
}

func (s *Server) joinURL(origin, token string) string {
	if origin == "" {
		origin = s.PublicURL
	}
	return strings.TrimRight(origin, "/") + "/call/join/" + token
}

func (s *Server) handleStartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "episodeId is required")
		return
	}
	ctx := c.Request.Context()
	user := CurrentUser(c)

	ep, err := s.Catalog.Episode(ctx, req.EpisodeID)
	if errors.Is(err, core.ErrEpisodeNotFound) {
		abortError(c, http.StatusNotFound, "Episode not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("episode", req.EpisodeID).Msg("episode lookup")
		abortError(c, http.StatusInternalServerError, "internal error")
		return
	}
	allowed, err := s.Access.CanAccessEpisode(ctx, user, req.EpisodeID)
	if err != nil || !allowed {
		abortError(c, http.StatusForbidden, "You don't have access to this episode")
		return
	}

	res, err := s.Orch.StartCall(ctx, app.CreateParams{
		EpisodeID:  ep.ID,
		PodcastID:  ep.PodcastID,
		HostUserID: user,
		HostName:   s.Catalog.DisplayName(ctx, user),
		OriginHint: c.GetHeader("Origin"),
		Password:   strings.TrimSpace(req.Password),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("episode", req.EpisodeID).Msg("start call")
		abortError(c, http.StatusInternalServerError, "Could not start call")
		return
	}

	sess := res.Session
	resp := startCallResponse{
		Token:             sess.Token,
		SessionID:         sess.ID,
		JoinURL:           s.joinURL(sess.OriginHint, sess.Token),
		JoinCode:          res.JoinCode,
		RoomID:            sess.RoomID,
		WebRTCUnavailable: res.WebRTCUnavailable,
	}
	if sess.RoomID != "" {
		resp.WebRTCURL = s.Orch.MediaURL
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetSession(c *gin.Context) {
	episodeID := c.Query("episodeId")
	if episodeID == "" {
		abortError(c, http.StatusBadRequest, "episodeId is required")
		return
	}
	sess, ok := s.Orch.Sessions.FindActive(episodeID, CurrentUser(c))
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, sessionView{
		SessionID:        sess.ID,
		Token:            sess.Token,
		JoinURL:          s.joinURL(sess.OriginHint, sess.Token),
		JoinCode:         sess.JoinCode,
		EpisodeID:        sess.EpisodeID,
		RoomID:           sess.RoomID,
		PasswordRequired: sess.HasPassword(),
		Participants:     sess.Participants,
		CreatedAt:        sess.CreatedAt,
	})
}

func (s *Server) handleByCode(c *gin.Context) {
	sess, ok := s.Orch.Sessions.GetByCode(c.Param("code"))
	if !ok {
		s.recordFailure(c, "code")
		abortError(c, http.StatusNotFound, "Call not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token})
}

func (s *Server) handleJoinInfo(c *gin.Context) {
	info, ok := s.Orch.Sessions.GetForJoinInfo(c.Param("token"))
	if !ok {
		s.recordFailure(c, "token")
		abortError(c, http.StatusNotFound, "Call not found")
		return
	}
	resp := joinInfoResponse{
		HostName:         info.HostName,
		PasswordRequired: info.PasswordRequired,
	}
	if ep, err := s.Catalog.Episode(c.Request.Context(), info.EpisodeID); err == nil {
		resp.Podcast = ep.PodcastTitle
		resp.Episode = ep.Title
		resp.ArtworkURL = ep.ArtworkURL
	} else {
		log.Warn().Err(err).Str("module", "adapters.http").Str("episode", info.EpisodeID).Msg("join-info episode lookup")
	}
	c.JSON(http.StatusOK, resp)
}
