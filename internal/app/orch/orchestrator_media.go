package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/domain"
)

type StartResult struct {
	Session           *domain.CallSession
	JoinCode          string
	Reused            bool
	WebRTCUnavailable bool
}

// StartCall returns the host's live session for the episode, creating it if
// needed, and makes sure it has a media room and a join code. A media room
// failure degrades the call to WebRTCUnavailable instead of failing it.
func (o *Orchestrator) StartCall(ctx context.Context, p app.CreateParams) (StartResult, error) {
	o.mu.Lock()
	sess, reused := o.Sessions.FindActive(p.EpisodeID, p.HostUserID)
	if !reused {
		var err error
		sess, err = o.Sessions.Create(p, o.onEnded)
		if err != nil {
			o.mu.Unlock()
			return StartResult{}, err
		}
	}
	o.mu.Unlock()
	o.Metrics.SetSessions(o.Sessions.Count())

	res := StartResult{Reused: reused}
	switch {
	case !o.mediaEnabled():
		res.WebRTCUnavailable = true
	case sess.RoomID == "":
		roomID, err := o.Media.CreateRoom(ctx, sess.ID)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID)).Msg("media room unavailable")
			res.WebRTCUnavailable = true
		} else {
			o.attachRoom(sess.ID, roomID)
		}
	}

	code, err := o.Sessions.EnsureJoinCode(sess.ID)
	if err != nil {
		return StartResult{}, err
	}
	final, ok := o.Sessions.GetByID(sess.ID)
	if !ok {
		return StartResult{}, app.ErrSessionNotFound
	}
	res.Session = final
	res.JoinCode = code
	return res, nil
}

// attachRoom records roomID unless a concurrent start already set one, in
// which case the extra room is released.
func (o *Orchestrator) attachRoom(sid domain.SessionID, roomID string) {
	o.mu.Lock()
	cur, ok := o.Sessions.GetByID(sid)
	if ok && cur.RoomID == "" {
		o.Sessions.SetRoomID(sid, roomID)
		o.mu.Unlock()
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", roomID).Msg("media room attached")
		return
	}
	o.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.Media.DeleteRoom(ctx, roomID); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", roomID).Msg("release of surplus room failed")
		}
	}()
}
