package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/protocol"
)

func (ctl *SignalWSController) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return defaultPingPeriod
}

// writePump drains send until Close closes it, then closes the socket.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", c.id).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", c.id).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", c.id).Msg("readPump closing")
		c.state = StateTerminated
		c.Close()
		ctl.Orch.ConnectionClosed(c)
		ctl.Metrics.ConnectionClosed()
		cancel()
	}()

	limit := ctl.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	pongWait := ctl.pingPeriod() * 10 / 9
	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(ctx, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", c.id).Msg("ignored message")
		return
	}

	switch c.state {
	case StateTerminated:
		return
	case StateUnauthenticated:
		if !protocol.IsHandshake(msg) {
			log.Debug().Str("module", "signal").Str("conn", c.id).Str("type", string(msg.Kind())).Msg("not initialised")
			return
		}
		ctl.handleHandshake(ctx, c, msg)
		return
	}

	switch m := msg.(type) {
	case protocol.Heartbeat:
		ctl.Orch.Heartbeat(c)
	case protocol.UpdateHostName:
		ctl.Orch.Rename(c, m.Name, true)
	case protocol.UpdateParticipantName:
		ctl.Orch.Rename(c, m.Name, false)
	case protocol.Leave:
		ctl.handleLeave(c)
	case protocol.Chat:
		ctl.Orch.Chat(c, m.Text)
	case protocol.SetMute:
		ctl.handleSetMute(c, m)
	case protocol.DisconnectParticipant:
		ctl.handleDisconnectParticipant(c, m)
	case protocol.StartRecording:
		ctl.handleStartRecording(ctx, c)
	case protocol.StopRecording:
		ctl.handleStopRecording(ctx, c)
	case protocol.EndCall:
		ctl.handleEndCall(ctx, c)
	case protocol.Host, protocol.Guest, protocol.MigrateHost:
		log.Debug().Str("module", "signal").Str("conn", c.id).Msg("handshake on initialised connection")
	}
}
