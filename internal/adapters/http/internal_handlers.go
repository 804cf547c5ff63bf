package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app/recording"
	"github.com/dkeye/podcall/internal/core"
)

func (s *Server) handleCheckStorage(c *gin.Context) {
	var req recording.CheckStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	c.JSON(http.StatusOK, s.Recorder.CheckStorage(c.Request.Context(), req))
}

func (s *Server) handleRecordingError(c *gin.Context) {
	var rep recording.ErrorReport
	if err := c.ShouldBindJSON(&rep); err != nil || rep.SessionID == "" {
		abortError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := s.Recorder.RecordingError(c.Request.Context(), rep); err != nil {
		callbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRecordingSegment(c *gin.Context) {
	var rep recording.SegmentReport
	if err := c.ShouldBindJSON(&rep); err != nil {
		abortError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	seg, err := s.Recorder.SegmentRecorded(c.Request.Context(), rep)
	if err != nil {
		callbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segment": seg})
}

func callbackError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recording.ErrUnknownSession):
		abortError(c, http.StatusNotFound, "session not found")
	case errors.Is(err, recording.ErrInvalidSegment), errors.Is(err, core.ErrPathOutsideBase):
		abortError(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("callback failed")
		abortError(c, http.StatusInternalServerError, "internal error")
	}
}
