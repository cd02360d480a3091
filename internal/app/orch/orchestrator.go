package orch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/app/show"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator connects the registry, the line and the show: it decides
// when the next participant is admitted and fans out disconnects.
type Orchestrator struct {
	Registry *app.Registry
	Line     *app.Waitlist
	Show     *show.Machine
	Policy   app.Policy
	Recorder core.Recorder

	// StartDelay postpones admission after the show becomes ready.
	StartDelay time.Duration

	ctx      context.Context
	serving  atomic.Bool
	checking atomic.Bool
	recheck  atomic.Bool
}

func New(ctx context.Context, reg *app.Registry, line *app.Waitlist, machine *show.Machine, policy app.Policy, rec core.Recorder) *Orchestrator {
	o := &Orchestrator{
		Registry: reg,
		Line:     line,
		Show:     machine,
		Policy:   policy,
		Recorder: rec,
		ctx:      ctx,
	}
	line.OnChange(func() { o.CheckLine() })
	machine.OnStateChange(o.onShowState)
	return o
}

func (o *Orchestrator) onShowState(s show.State) {
	if s != show.Ready {
		log.Warn().Str("module", "orch").Str("state", s.String()).Msg("show unavailable")
		return
	}
	if o.StartDelay > 0 {
		time.AfterFunc(o.StartDelay, o.CheckLine)
		return
	}
	o.CheckLine()
}

// OnBackpressure applies the policy to a session whose transport is full.
func (o *Orchestrator) OnBackpressure(sid domain.SessionID) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sid) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow session")
		o.OnDisconnect(sid)
	case app.DropFrame, app.NoAction:
	}
}

// OnDisconnect evicts sid and lets the show react if it was being served.
func (o *Orchestrator) OnDisconnect(sid domain.SessionID) {
	if _, ok := o.Registry.Evict(sid); !ok {
		return
	}
	o.Show.ParticipantGone(o.ctx, sid)
}

// Status is the operator view of the whole coordinator.
type Status struct {
	Serving           bool             `json:"serving"`
	Show              show.Status      `json:"show"`
	Line              app.LineSnapshot `json:"line"`
	Sessions          int              `json:"sessions"`
	Queued            int              `json:"queued"`
	RecorderConnected bool             `json:"recorderConnected"`
}

func (o *Orchestrator) Status() Status {
	st := Status{
		Serving:  o.serving.Load(),
		Show:     o.Show.Status(),
		Line:     o.Line.Snapshot(),
		Sessions: o.Registry.Count(),
		Queued:   o.Registry.CountInState(domain.StateQueued),
	}
	if o.Recorder != nil {
		st.RecorderConnected = o.Recorder.Connected()
	}
	return st
}
