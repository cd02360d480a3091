package signal

import (
	"context"
	"errors"
	"strconv"

	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleAck(c *WsSignalConn, key string) {
	if ctl.Orch.Registry.Acknowledge(c.sid, key) {
		ctl.send(c, core.NewMessage("connected", "1"))
	}
}

func (ctl *SignalWSController) handleAllocate(ctx context.Context, c *WsSignalConn, secret string) {
	logger := log.With().Str("module", "signal").Str("sid", string(c.sid)).Logger()
	if !ctl.Orch.Registry.IsConnected(c.sid) {
		logger.Warn().Msg("allocate before ack")
		return
	}
	if !ctl.attempts.Allow(c.addr) {
		logger.Warn().Msg("allocation rate limited")
		return
	}
	pid, err := ctl.Orch.Registry.AllocateIdentity(ctx, c.sid, secret)
	if err != nil {
		logger.Warn().Err(err).Msg("allocate user")
		return
	}
	ctl.send(c, core.NewMessage("userAssigned", string(pid)))
}

func (ctl *SignalWSController) handleRequestTurn(ctx context.Context, c *WsSignalConn) {
	sess, ok := ctl.Orch.Registry.Get(c.sid)
	if !ok {
		return
	}
	turn, err := ctl.Orch.Line.RequestTurn(ctx, sess)
	switch {
	case err == nil, errors.Is(err, app.ErrAlreadyQueued):
	case errors.Is(err, app.ErrRequestInFlight):
		// the pending request answers
		return
	default:
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("request turn rejected")
		turn = 0
	}
	ctl.send(c, core.NewMessage("replyTurn", strconv.Itoa(turn)))
}

// handleRecover expects "participantID:password".
func (ctl *SignalWSController) handleRecover(ctx context.Context, c *WsSignalConn, payload string) {
	logger := log.With().Str("module", "signal").Str("sid", string(c.sid)).Logger()
	pid, password, ok := core.SplitPair(payload, ":")
	if !ok || pid == "" {
		logger.Warn().Msg("malformed recovery")
		ctl.send(c, core.NewMessage("userRecoveryFails", ""))
		return
	}
	if !ctl.attempts.Allow(c.addr) {
		logger.Warn().Msg("recovery rate limited")
		ctl.send(c, core.NewMessage("userRecoveryFails", ""))
		return
	}
	recovered, err := ctl.Orch.Registry.Recover(ctx, c.sid, domain.ParticipantID(pid), password)
	if err != nil {
		logger.Warn().Err(err).Msg("recover session")
	}
	if !recovered {
		ctl.send(c, core.NewMessage("userRecoveryFails", ""))
		return
	}
	ctl.send(c, core.NewMessage("userRecovered", pid))
}

func (ctl *SignalWSController) handleRecordField(c *WsSignalConn, msg core.Message) {
	sess, ok := ctl.Orch.Registry.Get(c.sid)
	if !ok {
		return
	}
	var err error
	switch msg.Event {
	case "setADN":
		err = sess.SetADN(msg.Payload)
	case "setBugName":
		err = sess.SetDisplayName(msg.Payload)
	case "setIntroWords":
		err = sess.SetIntroWords(msg.Payload)
	case "setLastWords":
		err = sess.SetLastWords(msg.Payload)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Str("event", msg.Event).Msg("invalid record field")
	}
}
