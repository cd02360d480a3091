package orch

import (
	"github.com/dkeye/Hotseat/internal/app/show"
	"github.com/rs/zerolog/log"
)

// Start enables admission and checks the line right away.
func (o *Orchestrator) Start() {
	o.serving.Store(true)
	log.Info().Str("module", "orch").Msg("serving started")
	o.CheckLine()
}

// Pause stops admitting new participants. A round in progress finishes.
func (o *Orchestrator) Pause() {
	o.serving.Store(false)
	log.Info().Str("module", "orch").Msg("serving paused")
}

func (o *Orchestrator) Serving() bool { return o.serving.Load() }

// CheckLine admits the head of the line when the show is ready. Calls that
// arrive while a check runs are folded into one more pass.
func (o *Orchestrator) CheckLine() {
	if !o.checking.CompareAndSwap(false, true) {
		o.recheck.Store(true)
		return
	}
	defer o.checking.Store(false)
	for {
		o.recheck.Store(false)
		if !o.checkOnce() || !o.recheck.Load() {
			return
		}
	}
}

// checkOnce returns false when the line could not be advanced.
func (o *Orchestrator) checkOnce() bool {
	if !o.serving.Load() || o.Show.State() != show.Ready || o.Line.Len() == 0 {
		return true
	}
	logger := log.With().Str("module", "orch").Logger()

	head := o.Line.HeadOfLine()
	if head == nil || !head.State().HoldsTurn() {
		pid, err := o.Line.PeekNext(o.ctx)
		if err != nil {
			logger.Error().Err(err).Msg("skip absent head of line")
			return false
		}
		logger.Info().Str("participant", string(pid)).Msg("skipped absent participant")
		return true
	}

	logger.Info().Str("sid", string(head.ID())).Int("turn", head.Turn()).Msg("admitting head of line")
	go func() {
		if err := o.Show.ServePlayer(o.ctx, head); err != nil {
			logger.Warn().Err(err).Str("sid", string(head.ID())).Msg("serve ended early")
		}
	}()
	o.Show.PrestageNext(o.Line.SecondInLine())
	return true
}
