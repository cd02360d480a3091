package show

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ServePlayer takes sess from the head of the line into PLAYING. It blocks
// through the handshake and pilot confirmation. Any failure other than a
// detached live-control channel recycles the slot and advances the line.
func (m *Machine) ServePlayer(ctx context.Context, sess *domain.Session) error {
	sid := sess.ID()
	logger := log.With().Str("module", "show").Str("sid", string(sid)).Logger()

	m.mu.Lock()
	if m.state != Ready {
		state := m.state
		m.mu.Unlock()
		logger.Warn().Str("state", state.String()).Msg("serve requested while not ready")
		return ErrNotReady
	}
	m.state = Busy
	m.serving = sid
	m.mu.Unlock()

	sess.SetState(domain.StateReadyToPlay)
	m.set(ConnectingPlayer)
	logger.Info().Str("participant", string(sess.ParticipantID())).Int("turn", sess.Turn()).Msg("serving participant")

	peer := sess.PeerHandle()
	if peer == "" {
		var err error
		peer, err = m.connectPlayer(ctx, sess)
		if err != nil {
			logger.Warn().Err(err).Msg("player handshake failed")
			m.abandon(ctx, sess, err)
			return err
		}
	}

	pilot, err := m.assignPilot(peer)
	if err != nil {
		m.abandon(ctx, sess, err)
		return err
	}
	confirmed, err := pilot.wait(ctx, m.cfg.PilotTimeout)
	if err == nil && !confirmed {
		err = ErrPilotNotConfirmed
	}
	if err != nil {
		logger.Warn().Err(err).Str("peer", string(peer)).Msg("pilot not engaged")
		m.abandon(ctx, sess, err)
		return err
	}

	name := fmt.Sprintf("%s_%d_%s", m.cfg.ShowName, sess.Turn(), time.Now().Format("20060102-150405"))
	m.mu.Lock()
	m.recName = name
	m.mu.Unlock()
	if err := m.deps.Recorder.StartRecording(ctx, name); err != nil {
		logger.Error().Err(err).Msg("start recording")
	}
	if err := m.deps.Recorder.SwitchScene(ctx, m.cfg.LiveScene); err != nil {
		logger.Error().Err(err).Str("scene", m.cfg.LiveScene).Msg("switch scene")
	}
	if !m.advance(AssigningPilot, Playing) {
		m.abandon(ctx, sess, ErrDetached)
		return ErrDetached
	}
	sess.SetState(domain.StatePlaying)
	logger.Info().Str("peer", string(peer)).Msg("participant playing")
	return nil
}

// connectPlayer issues a fresh secret and polls until the live-control
// channel reports the participant connected under it.
func (m *Machine) connectPlayer(ctx context.Context, sess *domain.Session) (domain.PeerHandle, error) {
	sid := sess.ID()
	secret := newSecret()
	ttl := m.cfg.PendingTTL
	if ttl <= 0 {
		ttl = time.Duration(m.cfg.PollAttempts) * m.cfg.PollInterval
	}

	m.mu.Lock()
	m.pending[secret] = &pendingConnection{secret: secret, sid: sid, expires: time.Now().Add(ttl)}
	m.secret = secret
	m.mu.Unlock()
	time.AfterFunc(ttl, func() { m.dropPending(secret) })

	sess.SetSecretKey(secret)
	m.sendControl("waitForConnection", secret)

	err := poll(ctx, m.cfg.PollAttempts, m.cfg.PollInterval, func() (bool, error) {
		if m.State() != ConnectingPlayer {
			return false, ErrDetached
		}
		if _, ok := m.deps.Registry.Get(sid); !ok {
			return false, ErrParticipantGone
		}
		m.mu.Lock()
		p, ok := m.pending[secret]
		failed := ok && p.failed
		m.mu.Unlock()
		if failed {
			return false, ErrHandshakeFailed
		}
		return sess.PeerHandle() != "", nil
	})

	m.dropPending(secret)
	if err != nil {
		sess.SetSecretKey("")
		return "", err
	}
	return sess.PeerHandle(), nil
}

func (m *Machine) dropPending(secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, secret)
	if m.secret == secret {
		m.secret = ""
	}
}

func (m *Machine) assignPilot(peer domain.PeerHandle) (*awaiter[bool], error) {
	m.mu.Lock()
	if m.state != ConnectingPlayer {
		m.mu.Unlock()
		return nil, ErrDetached
	}
	m.state = AssigningPilot
	m.active = peer
	a := replace(&m.pilot)
	m.mu.Unlock()

	m.sendControl("assignPilot", string(peer))
	return a, nil
}

// RegisterPlayerConnection confirms the handshake for secret: peer becomes
// the live-control handle of the participant that holds it. Expired or unknown
// secrets are rejected without touching any session.
func (m *Machine) RegisterPlayerConnection(secret string, peer domain.PeerHandle) error {
	logger := log.With().Str("module", "show").Str("peer", string(peer)).Logger()
	if peer == "" {
		return ErrUnknownSecret
	}
	m.mu.Lock()
	p, ok := m.pending[secret]
	if !ok || time.Now().After(p.expires) {
		m.mu.Unlock()
		logger.Warn().Msg("connection for unknown secret")
		return ErrUnknownSecret
	}
	delete(m.pending, secret)
	m.mu.Unlock()

	if !m.deps.Registry.LinkPeer(p.sid, peer) {
		logger.Warn().Str("sid", string(p.sid)).Msg("connection for departed participant")
		return ErrParticipantGone
	}
	logger.Info().Str("sid", string(p.sid)).Msg("player connected")
	return nil
}

// FailConnection marks the pending handshake for secret as failed.
func (m *Machine) FailConnection(secret string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[secret]
	if !ok {
		return false
	}
	p.failed = true
	log.Warn().Str("module", "show").Str("sid", string(p.sid)).Msg("player connection failed")
	return true
}

// ForwardConnect hands the secret to the participant it was issued for so
// it can open its live-control connection.
func (m *Machine) ForwardConnect(secret string) error {
	m.mu.Lock()
	p, ok := m.pending[secret]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSecret
	}
	return m.deps.Registry.Send(p.sid, core.NewMessage("gc_connect", secret))
}

// ConfirmPilot resolves the outstanding pilot engagement.
func (m *Machine) ConfirmPilot() bool {
	return m.resolvePilot(true)
}

func (m *Machine) resolvePilot(ok bool) bool {
	m.mu.Lock()
	a := m.pilot
	m.mu.Unlock()
	if a == nil {
		return false
	}
	return a.resolve(ok, nil)
}

// ParticipantGone reacts to sid leaving the registry while it is being served.
func (m *Machine) ParticipantGone(ctx context.Context, sid domain.SessionID) {
	m.mu.Lock()
	serving := m.serving == sid && sid != ""
	state := m.state
	peer := m.active
	m.mu.Unlock()
	if !serving {
		return
	}
	log.Info().Str("module", "show").Str("sid", string(sid)).Str("state", state.String()).Msg("served participant left")
	switch state {
	case AssigningPilot:
		m.resolvePilot(false)
	case Playing:
		if err := m.GameOver(ctx, peer, "disconnected"); err != nil {
			log.Error().Err(err).Str("module", "show").Msg("end round after disconnect")
		}
	}
}

// abandon recycles the slot after a failed serve. A detached channel keeps
// the participant's turn so they are served again once it comes back.
func (m *Machine) abandon(ctx context.Context, sess *domain.Session, cause error) {
	m.deps.Registry.LinkPeer(sess.ID(), "")
	sess.SetSecretKey("")
	if errors.Is(cause, ErrDetached) {
		if sess.State() == domain.StateReadyToPlay {
			sess.SetState(domain.StateQueued)
		}
		m.finish(ctx, sess.ID(), false)
		return
	}
	if sess.State() != domain.StateDisconnected {
		sess.SetDeathCause("not ready to play")
		sess.Release()
	}
	m.finish(ctx, sess.ID(), true)
}

// finish clears the active slot of sid, advances the line and returns to
// READY. It is a no-op once another round owns the slot.
func (m *Machine) finish(ctx context.Context, sid domain.SessionID, advance bool) {
	m.mu.Lock()
	if m.serving != sid {
		m.mu.Unlock()
		return
	}
	m.active = ""
	m.serving = ""
	m.secret = ""
	m.recName = ""
	take(&m.pilot)
	take(&m.card)
	take(&m.video)
	live := m.state.inRound()
	m.mu.Unlock()

	if advance && live {
		if _, err := m.deps.Line.PeekNext(ctx); err != nil {
			log.Error().Err(err).Str("module", "show").Msg("advance line")
		}
	}
	m.set(Ready)
}
