// Package orch performs session-level actions that span the Session Store,
// the Connection Registry and the Recording Coordinator.
package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/app/recording"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/metrics"
	"github.com/dkeye/podcall/internal/protocol"
)

// DefaultHostRemountGrace separates a client remounting against itself from
// a genuine second host window.
const DefaultHostRemountGrace = 500 * time.Millisecond

var (
	// ErrJoinRefused covers unknown tokens, wrong passwords and ended
	// sessions alike.
	ErrJoinRefused = errors.New("unable to join call")
	ErrNotHost     = errors.New("host only")
	ErrNoMigration = errors.New("no pending host migration")
)

type Orchestrator struct {
	Sessions *app.Store
	Registry *app.Registry
	Recorder *recording.Coordinator
	Media    core.MediaService
	Metrics  *metrics.Metrics

	// MediaURL and ICEServers are handed to clients in joined.media.
	MediaURL   string
	ICEServers []webrtc.ICEServer

	RemountGrace time.Duration
	ChatMaxLen   int

	// mu serialises membership changes across sessions and the registry.
	mu sync.Mutex
}

func (o *Orchestrator) mediaEnabled() bool {
	return o.Media != nil && o.Media.Configured()
}

func (o *Orchestrator) mediaDetails(sess *domain.CallSession) *protocol.MediaDetails {
	if !o.mediaEnabled() || sess.RoomID == "" {
		return nil
	}
	return &protocol.MediaDetails{
		WebRTCURL:  o.MediaURL,
		RoomID:     sess.RoomID,
		ICEServers: o.ICEServers,
	}
}

func (o *Orchestrator) onEnded(sess domain.CallSession) {
	if o.Recorder != nil {
		o.Recorder.ReleaseRoom(sess)
	}
	o.Metrics.SetSessions(o.Sessions.Count())
}

// BroadcastParticipants pushes the current participant list to the session.
func (o *Orchestrator) BroadcastParticipants(sid domain.SessionID) {
	sess, ok := o.Sessions.GetByID(sid)
	if !ok {
		return
	}
	o.Registry.Broadcast(sid, protocol.NewParticipants(sess.Participants))
}

// dropConnection forgets c without closing it.
func (o *Orchestrator) dropConnection(sid domain.SessionID, c core.SignalConnection) {
	o.Registry.Unbind(c)
	o.Registry.DropPendingMigration(c)
	o.Registry.Detach(sid, c)
}

// ConnectionClosed is the cleanup for any connection that goes away. A
// guest whose last connection closed leaves the call; the host record stays
// for reconnection.
func (o *Orchestrator) ConnectionClosed(c core.SignalConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Registry.DropPendingMigration(c)
	b, ok := o.Registry.Unbind(c)
	if !ok {
		return
	}
	o.Registry.Detach(b.SessionID, c)

	p, ok := o.Sessions.Participant(b.SessionID, b.ParticipantID)
	if !ok || p.IsHost {
		return
	}
	if len(o.Registry.ParticipantConnections(b.SessionID, b.ParticipantID)) > 0 {
		return
	}
	if o.Sessions.RemoveParticipant(b.SessionID, b.ParticipantID) {
		o.BroadcastParticipants(b.SessionID)
	}
}

// EndSession stops any recording, ends the session and tells everyone. It
// reports false when the session was already gone.
func (o *Orchestrator) EndSession(ctx context.Context, sid domain.SessionID, reason string) bool {
	if sess, ok := o.Sessions.GetByID(sid); ok && o.Recorder != nil {
		o.Recorder.StopBestEffort(ctx, sess)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Sessions.End(sid) == nil {
		return false
	}
	o.Registry.Broadcast(sid, protocol.NewCallEnded(reason))
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("reason", reason).Msg("call ended")
	return true
}

// ExpireIdleSessions ends every session whose host has been silent for idle.
func (o *Orchestrator) ExpireIdleSessions(ctx context.Context, idle time.Duration) []domain.SessionID {
	var ended []domain.SessionID
	for _, sid := range o.Sessions.IdleSince(time.Now().Add(-idle)) {
		if o.EndSession(ctx, sid, protocol.ReasonHostIdle) {
			ended = append(ended, sid)
		}
	}
	return ended
}
