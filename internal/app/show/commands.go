package show

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownEvent = errors.New("unknown live-control event")

// HandleCommand routes one inbound live-control message to the step that is
// waiting for it. Events that match nothing are logged and dropped.
func (m *Machine) HandleCommand(ctx context.Context, msg core.Message) error {
	logger := log.With().Str("module", "show").Str("event", msg.Event).Logger()
	event, ok := strings.CutPrefix(msg.Event, m.cfg.Prefix)
	if !ok {
		logger.Warn().Msg("event outside live-control namespace")
		return ErrUnknownEvent
	}

	switch event {
	case "ready":
		m.MarkReady()
	case "waitingConnection":
		if err := m.ForwardConnect(msg.Payload); err != nil {
			logger.Warn().Err(err).Msg("forward connect")
			return err
		}
	case "connectionSuccess":
		secret, peer, ok := core.SplitPair(msg.Payload, "-")
		if !ok {
			logger.Warn().Str("payload", msg.Payload).Msg("malformed connection success")
			return ErrUnknownSecret
		}
		return m.RegisterPlayerConnection(secret, domain.PeerHandle(peer))
	case "connectionFail":
		if !m.FailConnection(msg.Payload) {
			logger.Warn().Msg("connection fail for unknown secret")
		}
	case "cardGenerated":
		if !m.CardGenerated(msg.Payload) {
			logger.Warn().Str("file", msg.Payload).Msg("card nobody asked for")
		}
	case "pilot_ready":
		if !m.ConfirmPilot() {
			logger.Warn().Msg("pilot ready with no pilot pending")
		}
	case "pilot_disconnected":
		m.PilotDisconnected(ctx, domain.PeerHandle(msg.Payload))
	case "player_score":
		peer, raw, _ := core.SplitPair(msg.Payload, "-")
		points, err := strconv.Atoi(raw)
		if err != nil {
			logger.Warn().Str("payload", msg.Payload).Msg("malformed score")
			return err
		}
		return m.AddScore(ctx, domain.PeerHandle(peer), points)
	case "player_reward":
		peer, reward, ok := core.SplitPair(msg.Payload, "-")
		if !ok || reward == "" {
			logger.Warn().Str("payload", msg.Payload).Msg("malformed reward")
			return ErrUnknownEvent
		}
		return m.RewardPlayer(ctx, domain.PeerHandle(peer), reward)
	case "gameOver":
		peer, cause, _ := core.SplitPair(msg.Payload, "-")
		// The round waits on later events from this same channel.
		go func() {
			_ = m.GameOver(context.WithoutCancel(ctx), domain.PeerHandle(peer), cause)
		}()
	default:
		logger.Warn().Msg("unhandled live-control event")
		return ErrUnknownEvent
	}
	return nil
}

// PilotDisconnected handles the participant's live-control link dropping.
// Before confirmation the pilot wait fails; during play the round ends.
func (m *Machine) PilotDisconnected(ctx context.Context, peer domain.PeerHandle) {
	m.mu.Lock()
	active, state := m.active, m.state
	m.mu.Unlock()
	if peer == "" || peer != active {
		log.Warn().Str("module", "show").Str("peer", string(peer)).Msg("pilot disconnect for inactive peer")
		return
	}
	switch state {
	case AssigningPilot:
		m.resolvePilot(false)
	case Playing:
		go func() {
			_ = m.GameOver(context.WithoutCancel(ctx), peer, "pilot disconnected")
		}()
	}
}
