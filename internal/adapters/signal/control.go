package signal

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) isControlEvent(msg core.Message) bool {
	return strings.HasPrefix(msg.Event, ctl.Orch.Show.Prefix())
}

// handleRegisterControl binds c as the live-control channel when secret
// matches the configured one.
func (ctl *SignalWSController) handleRegisterControl(c *WsSignalConn, secret string) {
	logger := log.With().Str("module", "signal").Str("sid", string(c.sid)).Logger()
	want := ctl.cfg.ControlSecret
	if want == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(want)) != 1 {
		logger.Warn().Msg("live control registration refused")
		return
	}
	if err := ctl.Orch.Show.Attach(c); err != nil {
		logger.Warn().Err(err).Msg("live control registration")
	}
}

func (ctl *SignalWSController) handleControl(ctx context.Context, msg core.Message) {
	if err := ctl.Orch.Show.HandleCommand(ctx, msg); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", msg.Event).Msg("live control event")
	}
}
