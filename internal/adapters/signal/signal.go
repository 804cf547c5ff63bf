// Package signal serves /call/ws: one websocket per participant window,
// driven through the handshake and call message protocol.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app/orch"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	defaultReadLimit  = 32 << 10
	defaultPingPeriod = 54 * time.Second
	sendBuffer        = 64
	writeWait         = 5 * time.Second
)

type State int

const (
	StateUnauthenticated State = iota
	StateInitialized
	StateTerminated
)

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Identity core.IdentityVerifier
	Failures core.FailureTracker
	Metrics  *metrics.Metrics

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, identity core.IdentityVerifier, failures core.FailureTracker, m *metrics.Metrics) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		Identity:   identity,
		Failures:   failures,
		Metrics:    m,
		ReadLimit:  defaultReadLimit,
		PingPeriod: defaultPingPeriod,
	}
}

// WsSignalConn is one client websocket. Frames queue on send and are
// written by writePump; Close lets writePump flush what is queued first.
type WsSignalConn struct {
	id   string
	conn *websocket.Conn
	send chan core.Frame
	ip   string
	// user is the identity carried by the upgrade request, if any.
	user domain.UserID

	// state is owned by the read goroutine.
	state State

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WsSignalConn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until it
// closes. userID is the signed-in identity of the request, empty for guests.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, userID domain.UserID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
		ip:   c.ClientIP(),
		user: userID,
	}
	log.Info().Str("module", "signal").Str("conn", conn.id).Str("ip", conn.ip).Msg("new WS connection")
	ctl.Metrics.ConnectionOpened()

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
