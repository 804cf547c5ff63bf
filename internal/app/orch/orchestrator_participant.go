package orch

import (
	"context"
	"time"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/protocol"
)

const (
	MsgHostEnforcedMute = "You were muted by the host and can't unmute yourself."
	msgMutedByHost      = "The host muted you."
	msgUnmutedByHost    = "The host unmuted you."
)

// Heartbeat refreshes host liveness. A connection whose session is gone is
// told the call ended.
func (o *Orchestrator) Heartbeat(c core.SignalConnection) {
	b, ok := o.Registry.BindingOf(c)
	if !ok {
		return
	}
	p, ok := o.Sessions.Participant(b.SessionID, b.ParticipantID)
	if !ok {
		_ = core.Send(c, protocol.NewCallEnded(""))
		return
	}
	if !p.IsHost {
		return
	}
	o.Sessions.UpdateHostHeartbeat(b.SessionID)
	_ = core.Send(c, protocol.NewHeartbeatAck(time.Now()))
}

// Rename changes the display name of c's participant. hostOnly restricts it
// to the host connection.
func (o *Orchestrator) Rename(c core.SignalConnection, name string, hostOnly bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.Registry.BindingOf(c)
	if !ok {
		return
	}
	if hostOnly {
		if _, ok := o.hostBinding(c); !ok {
			return
		}
	}
	n, _ := domain.NormalizeName(name)
	if n == "" {
		return
	}
	if o.Sessions.SetParticipantName(b.SessionID, b.ParticipantID, n) {
		o.BroadcastParticipants(b.SessionID)
	}
}

// Chat broadcasts text from c's participant, trimmed and capped.
func (o *Orchestrator) Chat(c core.SignalConnection, text string) {
	b, ok := o.Registry.BindingOf(c)
	if !ok {
		return
	}
	p, ok := o.Sessions.Participant(b.SessionID, b.ParticipantID)
	if !ok {
		return
	}
	limit := o.ChatMaxLen
	if limit <= 0 {
		limit = domain.MaxChatLen
	}
	t := domain.NormalizeChat(text, limit)
	if t == "" {
		return
	}
	o.Registry.Broadcast(b.SessionID, protocol.NewChat(p, t, time.Now()))
}

// SetMute toggles or sets mute state. Without a target it acts on the
// caller's own mutedBySelf, which cannot be cleared while mutedByHost is
// set. With a target, the host decides mutedByHost for that participant.
func (o *Orchestrator) SetMute(c core.SignalConnection, target domain.ParticipantID, muted *bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	b, ok := o.Registry.BindingOf(c)
	if !ok {
		return
	}
	caller, ok := o.Sessions.Participant(b.SessionID, b.ParticipantID)
	if !ok {
		return
	}

	if target == "" || target == caller.ID {
		want := !caller.MutedBySelf
		if muted != nil {
			want = *muted
		}
		if !want && caller.MutedByHost {
			_ = core.Send(c, protocol.NewMuteInstruction(true, true, MsgHostEnforcedMute))
			return
		}
		if o.Sessions.SetParticipantMutedBySelf(b.SessionID, caller.ID, want) {
			o.BroadcastParticipants(b.SessionID)
		}
		return
	}

	if !caller.IsHost {
		return
	}
	tp, ok := o.Sessions.Participant(b.SessionID, target)
	if !ok || tp.IsHost {
		return
	}
	want := !tp.MutedByHost
	if muted != nil {
		want = *muted
	}
	if !o.Sessions.SetParticipantMutedByHost(b.SessionID, target, want) {
		return
	}
	msg := msgUnmutedByHost
	if want {
		msg = msgMutedByHost
	}
	o.Registry.SendToParticipant(b.SessionID, target, protocol.NewMuteInstruction(want, true, msg))
	o.BroadcastParticipants(b.SessionID)
}

// EndCall ends the session on the host's request and detaches c.
func (o *Orchestrator) EndCall(ctx context.Context, c core.SignalConnection) error {
	sid, ok := o.HostSession(c)
	if !ok {
		return ErrNotHost
	}
	o.EndSession(ctx, sid, protocol.ReasonEndedByHost)

	o.mu.Lock()
	o.dropConnection(sid, c)
	o.mu.Unlock()
	return nil
}
