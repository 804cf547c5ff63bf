package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/podcall/internal/app/orch"
	"github.com/dkeye/podcall/internal/core"
	"github.com/dkeye/podcall/internal/domain"
	"github.com/dkeye/podcall/internal/protocol"
)

const (
	MsgJoinRefused = "Unable to join call"
	MsgSignInFirst = "Sign in to host this call."
	MsgTooMany     = "Too many failed attempts. Try again later."
)

func (ctl *SignalWSController) handleHandshake(ctx context.Context, c *WsSignalConn, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.Host:
		ctl.handleHost(ctx, c, m)
	case protocol.MigrateHost:
		ctl.handleMigrateHost(c)
	case protocol.Guest:
		ctl.handleGuest(c, m)
	}
}

func (ctl *SignalWSController) handleHost(ctx context.Context, c *WsSignalConn, m protocol.Host) {
	user := c.user
	if user == "" && m.AuthToken != "" && ctl.Identity != nil {
		uid, err := ctl.Identity.VerifyIdentity(ctx, m.AuthToken)
		if err != nil {
			log.Info().Err(err).Str("module", "signal").Str("conn", c.id).Msg("host identity rejected")
		} else {
			user = uid
		}
	}
	if user == "" {
		ctl.Metrics.JoinFailed("host_identity")
		ctl.refuse(c, MsgSignInFirst)
		return
	}

	switch ctl.Orch.HostJoin(c, domain.SessionID(m.SessionID), user, m.Name) {
	case orch.HostJoined:
		c.state = StateInitialized
		log.Info().Str("module", "signal").Str("conn", c.id).Str("sid", m.SessionID).Msg("host joined")
	case orch.HostPending:
	case orch.HostRefused:
		ctl.Metrics.JoinFailed("host")
		ctl.refuse(c, MsgJoinRefused)
	}
}

func (ctl *SignalWSController) handleMigrateHost(c *WsSignalConn) {
	err := ctl.Orch.MigrateHost(c)
	switch {
	case err == nil:
		c.state = StateInitialized
	case errors.Is(err, orch.ErrNoMigration):
		log.Debug().Str("module", "signal").Str("conn", c.id).Msg("migrateHost without offer")
	default:
		ctl.Metrics.JoinFailed("migrate")
		ctl.refuse(c, MsgJoinRefused)
	}
}

// handleGuest admits a guest. Bad tokens and bad passwords get the same
// answer and both count toward an IP ban.
func (ctl *SignalWSController) handleGuest(c *WsSignalConn, m protocol.Guest) {
	if ctl.Failures != nil && ctl.Failures.IsBanned(c.ip) {
		ctl.Metrics.JoinFailed("banned")
		ctl.refuse(c, MsgTooMany)
		return
	}
	if err := ctl.Orch.GuestJoin(c, m.Token, m.Name, m.Password); err != nil {
		if ctl.Failures != nil && ctl.Failures.RecordFailure(c.ip) {
			log.Warn().Str("module", "signal").Str("ip", c.ip).Msg("ip banned after failed joins")
		}
		ctl.Metrics.JoinFailed("guest")
		ctl.refuse(c, MsgJoinRefused)
		return
	}
	c.state = StateInitialized
}

// refuse answers with an error and closes; queued frames are flushed first.
func (ctl *SignalWSController) refuse(c *WsSignalConn, msg string) {
	_ = core.Send(c, protocol.NewError(msg))
	c.state = StateTerminated
	c.Close()
}
