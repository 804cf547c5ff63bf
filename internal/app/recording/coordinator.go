// Package recording drives start/stop of recordings on the external media
// service and handles its callbacks.
package recording

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/metrics"
	"github.com/dkeye/podcall/internal/protocol"
)

const (
	MsgStorageLimit = "Storage limit reached. Free up space or upgrade your plan to keep recording."
	MsgStartFailed  = "Could not start recording. Please try again."
	MsgStopFailed   = "Could not stop recording. Please try again."
	MsgUnavailable  = "Recording is unavailable for this call."
	MsgNoPermission = "You don't have permission to record this episode."
	MsgStoppedEarly = "Recording stopped unexpectedly."
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrInvalidSegment = errors.New("invalid segment")
)

// Broadcaster fans a message out to every connection of a session.
type Broadcaster interface {
	Broadcast(sid domain.SessionID, v any) int
}

type Coordinator struct {
	Sessions *app.Store
	Out      Broadcaster
	Media    core.MediaService
	Quota    core.StorageQuota
	Access   core.AccessControl
	Segments core.SegmentIngestor
	Paths    core.PathGuard
	Files    core.FileStore
	Metrics  *metrics.Metrics

	CallbackSecret string
	// RecordingsDir is where the media service writes finished files.
	RecordingsDir string
	// StorageDir is the permanent segment root: <StorageDir>/<podcast>/<episode>/.
	StorageDir string
}

// StartRecording checks permission and quota, then asks the media service
// to record the session's room. The outcome is broadcast to the session.
func (c *Coordinator) StartRecording(ctx context.Context, sid domain.SessionID) {
	sess, ok := c.Sessions.GetByID(sid)
	if !ok {
		return
	}

	if c.Access != nil {
		allowed, err := c.Access.CanEditSegments(ctx, sess.HostUserID, sess.EpisodeID)
		if err != nil || !allowed {
			if err != nil {
				log.Warn().Err(err).Str("module", "recording").Str("sid", string(sid)).Msg("segment permission check failed")
			}
			c.fail(sid, "start", "forbidden", protocol.NewRecordingError(MsgNoPermission))
			return
		}
	}

	if c.Quota != nil {
		status, err := c.Quota.CheckQuota(ctx, sess.PodcastID, 0)
		if err != nil {
			log.Warn().Err(err).Str("module", "recording").Str("sid", string(sid)).Msg("quota check failed")
			c.fail(sid, "start", "error", protocol.NewRecordingError(MsgStartFailed))
			return
		}
		if !status.Allowed {
			c.fail(sid, "start", "quota", protocol.NewRecordingError(MsgStorageLimit))
			return
		}
	}

	if c.Media == nil || !c.Media.Configured() || sess.RoomID == "" {
		c.fail(sid, "start", "unavailable", protocol.NewRecordingError(MsgUnavailable))
		return
	}

	segmentID := uuid.NewString()
	err := c.Media.StartRecording(ctx, core.StartRecordingRequest{
		RoomID:         sess.RoomID,
		SessionID:      string(sess.ID),
		SegmentID:      segmentID,
		EpisodeID:      sess.EpisodeID,
		PodcastID:      sess.PodcastID,
		CallbackSecret: c.CallbackSecret,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("module", "recording").
			Str("sid", string(sid)).
			Str("room", sess.RoomID).
			Msg("start recording failed")
		c.fail(sid, "start", "error", protocol.NewRecordingError(userMessage(err, MsgStartFailed)))
		return
	}

	log.Info().
		Str("module", "recording").
		Str("sid", string(sid)).
		Str("segment", segmentID).
		Msg("recording started")
	c.Metrics.Recording("start", "ok")
	c.Out.Broadcast(sid, protocol.NewRecordingStarted(segmentID))
}

// StopRecording asks the media service to stop. With no room or no media
// service there is nothing to stop and recordingStopped goes out at once.
func (c *Coordinator) StopRecording(ctx context.Context, sid domain.SessionID) {
	sess, ok := c.Sessions.GetByID(sid)
	if !ok {
		return
	}
	if c.Media == nil || !c.Media.Configured() || sess.RoomID == "" {
		c.Metrics.Recording("stop", "noop")
		c.Out.Broadcast(sid, protocol.NewRecordingStopped())
		return
	}

	if err := c.Media.StopRecording(ctx, sess.RoomID); err != nil {
		log.Warn().Err(err).
			Str("module", "recording").
			Str("sid", string(sid)).
			Str("room", sess.RoomID).
			Msg("stop recording failed")
		c.fail(sid, "stop", "error", protocol.NewRecordingStopFailed(userMessage(err, MsgStopFailed)))
		return
	}
	c.Metrics.Recording("stop", "ok")
	c.Out.Broadcast(sid, protocol.NewRecordingStopped())
}

// StopBestEffort stops any recording on the session's room without telling
// anyone. Used when the call is ending anyway.
func (c *Coordinator) StopBestEffort(ctx context.Context, sess *domain.CallSession) {
	if sess == nil || sess.RoomID == "" || c.Media == nil || !c.Media.Configured() {
		return
	}
	if err := c.Media.StopRecording(ctx, sess.RoomID); err != nil {
		log.Debug().Err(err).
			Str("module", "recording").
			Str("sid", string(sess.ID)).
			Msg("best-effort stop failed")
	}
}

// ReleaseRoom deletes the session's media room. It is the store's onEnded
// hook and runs detached from the caller.
func (c *Coordinator) ReleaseRoom(sess domain.CallSession) {
	if sess.RoomID == "" || c.Media == nil || !c.Media.Configured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Media.DeleteRoom(ctx, sess.RoomID); err != nil {
			log.Warn().Err(err).
				Str("module", "recording").
				Str("sid", string(sess.ID)).
				Str("room", sess.RoomID).
				Msg("delete room failed")
		}
	}()
}

type CheckStorageRequest struct {
	SessionID     string `json:"sessionId"`
	PodcastID     string `json:"podcastId"`
	BytesRecorded int64  `json:"bytesRecorded"`
}

type CheckStorageResult struct {
	Stop   bool   `json:"stop"`
	Reason string `json:"reason,omitempty"`
}

// CheckStorage tells the media service whether an in-progress recording
// of BytesRecorded would push the owner over quota. Lookup failures keep the
// recording going.
func (c *Coordinator) CheckStorage(ctx context.Context, req CheckStorageRequest) CheckStorageResult {
	podcastID := req.PodcastID
	if sess, ok := c.Sessions.GetByID(domain.SessionID(req.SessionID)); ok {
		podcastID = sess.PodcastID
	}
	if c.Quota == nil || podcastID == "" {
		return CheckStorageResult{}
	}

	status, err := c.Quota.CheckQuota(ctx, podcastID, req.BytesRecorded)
	if err != nil {
		log.Warn().Err(err).Str("module", "recording").Str("sid", req.SessionID).Msg("mid-recording quota check failed")
		c.Metrics.Recording("check_storage", "error")
		return CheckStorageResult{}
	}
	if !status.Allowed {
		c.Metrics.Recording("check_storage", "quota")
		return CheckStorageResult{Stop: true, Reason: MsgStorageLimit}
	}
	c.Metrics.Recording("check_storage", "ok")
	return CheckStorageResult{}
}

type ErrorReport struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

// RecordingError relays an early stop reported by the media service.
func (c *Coordinator) RecordingError(_ context.Context, rep ErrorReport) error {
	sid := domain.SessionID(rep.SessionID)
	if _, ok := c.Sessions.GetByID(sid); !ok {
		return ErrUnknownSession
	}
	msg := rep.Error
	if msg == "" {
		msg = MsgStoppedEarly
	}
	log.Info().Str("module", "recording").Str("sid", rep.SessionID).Str("reason", msg).Msg("recording stopped by media service")
	c.fail(sid, "callback_error", "relayed", protocol.NewRecordingError(msg))
	return nil
}

type SegmentReport struct {
	SessionID  string `json:"sessionId"`
	SegmentID  string `json:"segmentId"`
	EpisodeID  string `json:"episodeId"`
	PodcastID  string `json:"podcastId"`
	FilePath   string `json:"filePath"`
	DurationMs int64  `json:"durationMs"`
}

// SegmentRecorded moves a finished recording into permanent storage,
// registers it as an episode segment and announces it to the session.
func (c *Coordinator) SegmentRecorded(ctx context.Context, rep SegmentReport) (core.Segment, error) {
	sid := domain.SessionID(rep.SessionID)
	episodeID, podcastID := rep.EpisodeID, rep.PodcastID
	if sess, ok := c.Sessions.GetByID(sid); ok {
		episodeID, podcastID = sess.EpisodeID, sess.PodcastID
	}
	if rep.SegmentID == "" || rep.FilePath == "" || episodeID == "" || podcastID == "" {
		return core.Segment{}, fmt.Errorf("%w: missing fields", ErrInvalidSegment)
	}

	src := rep.FilePath
	if !filepath.IsAbs(src) {
		src = filepath.Join(c.RecordingsDir, src)
	}
	if err := c.Paths.AssertWithin(c.RecordingsDir, src); err != nil {
		return core.Segment{}, err
	}
	episodeDir := filepath.Join(c.StorageDir, podcastID, episodeID)
	if err := c.Paths.AssertWithin(c.StorageDir, episodeDir); err != nil {
		return core.Segment{}, err
	}
	dst := filepath.Join(episodeDir, rep.SegmentID+filepath.Ext(src))
	if err := c.Paths.AssertWithin(episodeDir, dst); err != nil {
		return core.Segment{}, err
	}

	size, err := c.Files.Copy(src, dst)
	if err != nil {
		c.Metrics.Recording("segment", "error")
		return core.Segment{}, fmt.Errorf("copy segment: %w", err)
	}

	seg, err := c.Segments.CreateSegmentFromPath(ctx, core.SegmentInput{
		EpisodeID: episodeID,
		PodcastID: podcastID,
		SegmentID: rep.SegmentID,
		Path:      dst,
		Duration:  time.Duration(rep.DurationMs) * time.Millisecond,
		SizeBytes: size,
	})
	if err != nil {
		c.Metrics.Recording("segment", "error")
		if rmErr := c.Files.Remove(dst); rmErr != nil {
			log.Warn().Err(rmErr).Str("module", "recording").Str("path", dst).Msg("cleanup of unregistered segment failed")
		}
		return core.Segment{}, fmt.Errorf("ingest segment: %w", err)
	}

	c.Metrics.Recording("segment", "ok")
	c.Out.Broadcast(sid, protocol.NewSegmentRecorded(seg))

	if err := c.Files.Remove(src); err != nil {
		log.Warn().Err(err).Str("module", "recording").Str("path", src).Msg("source recording not removed")
	}
	log.Info().
		Str("module", "recording").
		Str("sid", rep.SessionID).
		Str("segment", seg.ID).
		Int64("bytes", size).
		Msg("segment stored")
	return seg, nil
}

func (c *Coordinator) fail(sid domain.SessionID, op, outcome string, msg any) {
	c.Metrics.Recording(op, outcome)
	c.Out.Broadcast(sid, msg)
}

func userMessage(err error, fallback string) string {
	var uf core.UserFacing
	if errors.As(err, &uf) && uf.UserMessage() != "" {
		return uf.UserMessage()
	}
	return fallback
}
