package orch

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/protocol"
)

type HostResult int

const (
	HostRefused HostResult = iota
	HostJoined
	// HostPending means c was told the host is already connected and may
	// confirm a takeover with migrateHost.
	HostPending
)

// HostJoin binds c as the host connection of sid for userID. Other host
// connections bound within the remount grace are replaced silently; an
// older one blocks the join until migration is confirmed.
func (o *Orchestrator) HostJoin(c core.SignalConnection, sid domain.SessionID, userID domain.UserID, name string) HostResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.Sessions.GetByID(sid)
	if !ok || sess.HostUserID != userID {
		return HostRefused
	}
	host, ok := sess.Host()
	if !ok {
		return HostRefused
	}

	var remounts []core.SignalConnection
	for _, bc := range o.Registry.ParticipantConnections(sid, host.ID) {
		if bc.Conn == c || !bc.Conn.IsOpen() {
			continue
		}
		if time.Since(bc.BoundAt) >= o.RemountGrace {
			o.Registry.SetPendingMigration(c, app.PendingHostMigration{
				SessionID:        sid,
				ParticipantID:    host.ID,
				ProposedHostName: name,
			})
			_ = core.Send(c, protocol.NewAlreadyInCall())
			log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("host already connected, migration offered")
			return HostPending
		}
		remounts = append(remounts, bc.Conn)
	}
	for _, old := range remounts {
		o.dropConnection(sid, old)
		old.Close()
	}
	if len(remounts) > 0 {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Int("replaced", len(remounts)).Msg("host remount")
	}

	o.bindHost(c, sid, host.ID, name)
	return HostJoined
}

// MigrateHost completes a takeover offered by HostJoin: every other host
// connection is told and closed, then c becomes the host connection.
func (o *Orchestrator) MigrateHost(c core.SignalConnection) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, ok := o.Registry.TakePendingMigration(c)
	if !ok {
		return ErrNoMigration
	}
	if _, ok := o.Sessions.GetByID(m.SessionID); !ok {
		return ErrJoinRefused
	}

	for _, bc := range o.Registry.ParticipantConnections(m.SessionID, m.ParticipantID) {
		if bc.Conn == c {
			continue
		}
		_ = core.Send(bc.Conn, protocol.NewDisconnected(protocol.ReasonMigrated))
		o.dropConnection(m.SessionID, bc.Conn)
		bc.Conn.Close()
	}

	o.bindHost(c, m.SessionID, m.ParticipantID, m.ProposedHostName)
	o.Metrics.HostMigrated()
	log.Info().Str("module", "orch").Str("sid", string(m.SessionID)).Msg("host migrated")
	return nil
}

func (o *Orchestrator) bindHost(c core.SignalConnection, sid domain.SessionID, pid domain.ParticipantID, name string) {
	o.Registry.Attach(sid, c)
	o.Registry.BindParticipant(c, sid, pid)
	o.Sessions.UpdateHostHeartbeat(sid)

	renamed := false
	if n, _ := domain.NormalizeName(name); n != "" {
		renamed = o.Sessions.SetParticipantName(sid, pid, n)
	}

	sess, ok := o.Sessions.GetByID(sid)
	if !ok {
		return
	}
	_ = core.Send(c, protocol.NewJoined(sess, pid, true, o.mediaDetails(sess)))
	if renamed {
		o.Registry.BroadcastExcept(sid, c, protocol.NewParticipants(sess.Participants))
	}
}

// GuestJoin admits c as a new participant of the session behind token.
func (o *Orchestrator) GuestJoin(c core.SignalConnection, token, name, password string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.Sessions.GetByToken(token)
	if !ok {
		return ErrJoinRefused
	}
	password = strings.TrimSpace(password)
	if sess.HasPassword() && subtle.ConstantTimeCompare([]byte(password), []byte(sess.Password)) != 1 {
		return ErrJoinRefused
	}

	n, _ := domain.NormalizeName(name)
	p := o.Sessions.AddParticipant(sess.ID, domain.ParticipantID(uuid.NewString()), domain.NameOrDefault(n, domain.DefaultGuestName))
	if p == nil {
		return ErrJoinRefused
	}
	o.Registry.Attach(sess.ID, c)
	o.Registry.BindParticipant(c, sess.ID, p.ID)

	snap, ok := o.Sessions.GetByID(sess.ID)
	if !ok {
		return ErrJoinRefused
	}
	_ = core.Send(c, protocol.NewJoined(snap, p.ID, false, o.mediaDetails(snap)))
	o.Registry.BroadcastExcept(sess.ID, c, protocol.NewParticipantJoined(*p))
	log.Info().Str("module", "orch").Str("sid", string(sess.ID)).Str("pid", string(p.ID)).Msg("guest joined")
	return nil
}

// Leave detaches c. A guest leaving is removed from the call along with any
// other connection it still had.
func (o *Orchestrator) Leave(c core.SignalConnection) {
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
	for _, bc := range o.Registry.ParticipantConnections(b.SessionID, p.ID) {
		o.dropConnection(b.SessionID, bc.Conn)
		bc.Conn.Close()
	}
	if o.Sessions.RemoveParticipant(b.SessionID, p.ID) {
		o.BroadcastParticipants(b.SessionID)
	}
}

// KickParticipant removes target on the host's behalf and closes its
// connections. The host cannot remove itself.
func (o *Orchestrator) KickParticipant(c core.SignalConnection, target domain.ParticipantID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.hostBinding(c)
	if !ok {
		return ErrNotHost
	}
	p, ok := o.Sessions.Participant(b.SessionID, target)
	if !ok || p.IsHost {
		return nil
	}

	for _, bc := range o.Registry.ParticipantConnections(b.SessionID, target) {
		_ = core.Send(bc.Conn, protocol.NewDisconnected(protocol.ReasonRemovedByHost))
		o.dropConnection(b.SessionID, bc.Conn)
		bc.Conn.Close()
	}
	if o.Sessions.RemoveParticipant(b.SessionID, target) {
		o.BroadcastParticipants(b.SessionID)
	}
	log.Info().Str("module", "orch").Str("sid", string(b.SessionID)).Str("pid", string(target)).Msg("participant removed by host")
	return nil
}

// hostBinding returns c's binding when c is bound to a live session's host.
func (o *Orchestrator) hostBinding(c core.SignalConnection) (app.Binding, bool) {
	b, ok := o.Registry.BindingOf(c)
	if !ok {
		return app.Binding{}, false
	}
	p, ok := o.Sessions.Participant(b.SessionID, b.ParticipantID)
	if !ok || !p.IsHost {
		return app.Binding{}, false
	}
	return b, true
}

// HostSession reports the session c is the host of.
func (o *Orchestrator) HostSession(c core.SignalConnection) (domain.SessionID, bool) {
	b, ok := o.hostBinding(c)
	return b.SessionID, ok
}
