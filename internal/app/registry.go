package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
)

// Binding ties an initialised connection to one participant of one session.
type Binding struct {
	SessionID     domain.SessionID
	ParticipantID domain.ParticipantID
	BoundAt       time.Time
}

type BoundConnection struct {
	Conn    core.SignalConnection
	BoundAt time.Time
}

// PendingHostMigration is held for a connection that was told the host is
// already in the call and may confirm a takeover.
type PendingHostMigration struct {
	SessionID        domain.SessionID
	ParticipantID    domain.ParticipantID
	ProposedHostName string
}

type RegistryStats struct {
	Sessions          int
	Connections       int
	PendingMigrations int
}

// Registry is in-process bookkeeping of which connections belong to which
// session and participant. It knows nothing about sessions beyond their id.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[domain.SessionID]map[core.SignalConnection]struct{}
	bindings   map[core.SignalConnection]Binding
	migrations map[core.SignalConnection]PendingHostMigration
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[domain.SessionID]map[core.SignalConnection]struct{}),
		bindings:   make(map[core.SignalConnection]Binding),
		migrations: make(map[core.SignalConnection]PendingHostMigration),
		now:        time.Now,
	}
}

func (r *Registry) Attach(sid domain.SessionID, c core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[sid]
	if !ok {
		set = make(map[core.SignalConnection]struct{})
		r.sessions[sid] = set
	}
	set[c] = struct{}{}
}

// Detach removes c from the session and drops the session's set once empty.
func (r *Registry) Detach(sid domain.SessionID, c core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.sessions, sid)
	}
}

func (r *Registry) BindParticipant(c core.SignalConnection, sid domain.SessionID, pid domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[c] = Binding{SessionID: sid, ParticipantID: pid, BoundAt: r.now()}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("pid", string(pid)).Msg("bound participant")
}

func (r *Registry) Unbind(c core.SignalConnection) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[c]
	if ok {
		delete(r.bindings, c)
		log.Debug().Str("module", "app.registry").Str("sid", string(b.SessionID)).Str("pid", string(b.ParticipantID)).Msg("unbound participant")
	}
	return b, ok
}

func (r *Registry) BindingOf(c core.SignalConnection) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[c]
	return b, ok
}

// ParticipantConnections is the reverse lookup participant -> connections.
func (r *Registry) ParticipantConnections(sid domain.SessionID, pid domain.ParticipantID) []BoundConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []BoundConnection
	for c, b := range r.bindings {
		if b.SessionID == sid && b.ParticipantID == pid {
			out = append(out, BoundConnection{Conn: c, BoundAt: b.BoundAt})
		}
	}
	return out
}

func (r *Registry) Connections(sid domain.SessionID) []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sessions[sid]
	out := make([]core.SignalConnection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Broadcast sends v to every open connection of the session and returns
// how many accepted it.
func (r *Registry) Broadcast(sid domain.SessionID, v any) int {
	return r.BroadcastExcept(sid, nil, v)
}

func (r *Registry) BroadcastExcept(sid domain.SessionID, except core.SignalConnection, v any) int {
	frame, err := core.EncodeFrame(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("broadcast encode")
		return 0
	}
	conns := r.Connections(sid)
	sent := 0
	for _, c := range conns {
		if c == except || !c.IsOpen() {
			continue
		}
		if err := c.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("broadcast dropped")
			continue
		}
		sent++
	}
	return sent
}

// SendToParticipant delivers v to every open connection bound to pid.
func (r *Registry) SendToParticipant(sid domain.SessionID, pid domain.ParticipantID, v any) int {
	frame, err := core.EncodeFrame(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("send encode")
		return 0
	}
	sent := 0
	for _, bc := range r.ParticipantConnections(sid, pid) {
		if !bc.Conn.IsOpen() {
			continue
		}
		if err := bc.Conn.TrySend(frame); err == nil {
			sent++
		}
	}
	return sent
}

func (r *Registry) SetPendingMigration(c core.SignalConnection, m PendingHostMigration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations[c] = m
}

// TakePendingMigration consumes the pending migration for c.
func (r *Registry) TakePendingMigration(c core.SignalConnection) (PendingHostMigration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.migrations[c]
	delete(r.migrations, c)
	return m, ok
}

func (r *Registry) DropPendingMigration(c core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.migrations, c)
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := 0
	for _, set := range r.sessions {
		conns += len(set)
	}
	return RegistryStats{
		Sessions:          len(r.sessions),
		Connections:       conns,
		PendingMigrations: len(r.migrations),
	}
}
