package signal

import (
	"context"

	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/protocol"
)

func (ctl *SignalWSController) handleLeave(c *WsSignalConn) {
	ctl.Orch.Leave(c)
	c.state = StateTerminated
	c.Close()
}

func (ctl *SignalWSController) handleSetMute(c *WsSignalConn, m protocol.SetMute) {
	ctl.Orch.SetMute(c, domain.ParticipantID(m.TargetParticipantID), m.Muted)
}

func (ctl *SignalWSController) handleDisconnectParticipant(c *WsSignalConn, m protocol.DisconnectParticipant) {
	if m.ParticipantID == "" {
		return
	}
	_ = ctl.Orch.KickParticipant(c, domain.ParticipantID(m.ParticipantID))
}

func (ctl *SignalWSController) handleStartRecording(ctx context.Context, c *WsSignalConn) {
	sid, ok := ctl.Orch.HostSession(c)
	if !ok || ctl.Orch.Recorder == nil {
		return
	}
	ctl.Orch.Recorder.StartRecording(ctx, sid)
}

func (ctl *SignalWSController) handleStopRecording(ctx context.Context, c *WsSignalConn) {
	sid, ok := ctl.Orch.HostSession(c)
	if !ok || ctl.Orch.Recorder == nil {
		return
	}
	ctl.Orch.Recorder.StopRecording(ctx, sid)
}

func (ctl *SignalWSController) handleEndCall(ctx context.Context, c *WsSignalConn) {
	if err := ctl.Orch.EndCall(ctx, c); err == nil {
		c.state = StateTerminated
	}
}
