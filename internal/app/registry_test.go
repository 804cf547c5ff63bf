package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestRegistry_AttachDetach(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}

	r.Attach("s1", a)
	r.Attach("s1", b)
	assert.Len(t, r.Connections("s1"), 2)
	assert.Equal(t, 1, r.Stats().Sessions)

	r.Detach("s1", a)
	assert.Len(t, r.Connections("s1"), 1)
	r.Detach("s1", b)
	assert.Empty(t, r.Connections("s1"))
	assert.Zero(t, r.Stats().Sessions, "empty session set must be dropped")

	r.Detach("unknown", a)
}

func TestRegistry_BindAndReverseLookup(t *testing.T) {
	r := NewRegistry()
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	a, b := &fakeConn{}, &fakeConn{}

	r.BindParticipant(a, "s1", "host")
	r.BindParticipant(b, "s1", "guest")

	bind, ok := r.BindingOf(a)
	require.True(t, ok)
	assert.Equal(t, fixed, bind.BoundAt)

	hosts := r.ParticipantConnections("s1", "host")
	require.Len(t, hosts, 1)
	assert.Same(t, a, hosts[0].Conn)

	got, ok := r.Unbind(a)
	require.True(t, ok)
	assert.EqualValues(t, "host", got.ParticipantID)
	_, ok = r.Unbind(a)
	assert.False(t, ok)
	assert.Empty(t, r.ParticipantConnections("s1", "host"))
}

func TestRegistry_BroadcastSkipsClosedAndExcluded(t *testing.T) {
	r := NewRegistry()
	a, b, closed, full := &fakeConn{}, &fakeConn{}, &fakeConn{closed: true}, &fakeConn{full: true}
	for _, c := range []*fakeConn{a, b, closed, full} {
		r.Attach("s1", c)
	}

	sent := r.Broadcast("s1", protocol.NewRecordingStopped())
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 0, closed.count())

	sent = r.BroadcastExcept("s1", a, protocol.NewCallEnded(""))
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 2, b.count())
	assert.JSONEq(t, `{"type":"callEnded"}`, string(b.frames[1]))
}

func TestRegistry_SendToParticipant(t *testing.T) {
	r := NewRegistry()
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.BindParticipant(a, "s1", "g1")
	r.BindParticipant(b, "s1", "g1")
	r.BindParticipant(other, "s1", "g2")

	n := r.SendToParticipant("s1", "g1", protocol.NewMuteInstruction(true, true, ""))
	assert.Equal(t, 2, n)
	assert.Zero(t, other.count())
}

func TestRegistry_PendingMigrations(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.SetPendingMigration(c, PendingHostMigration{SessionID: "s1", ParticipantID: "h", ProposedHostName: "New"})
	assert.Equal(t, 1, r.Stats().PendingMigrations)

	m, ok := r.TakePendingMigration(c)
	require.True(t, ok)
	assert.Equal(t, "New", m.ProposedHostName)
	_, ok = r.TakePendingMigration(c)
	assert.False(t, ok, "a migration is consumed once")

	r.SetPendingMigration(c, m)
	r.DropPendingMigration(c)
	assert.Zero(t, r.Stats().PendingMigrations)
}
