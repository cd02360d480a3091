package show

import (
	"context"

	"github.com/dkeye/Hotseat/internal/app/card"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

// GameOver ends the round of peer. It is rejected without any mutation
// unless peer is the active participant. Collaborator failures are logged
// and the machine still returns to READY.
func (m *Machine) GameOver(ctx context.Context, peer domain.PeerHandle, cause string) error {
	logger := log.With().Str("module", "show").Str("peer", string(peer)).Logger()

	m.mu.Lock()
	if peer == "" || m.active != peer {
		active, state := m.active, m.state
		m.mu.Unlock()
		logger.Error().Str("active", string(active)).Str("state", state.String()).Msg("game over for inactive peer")
		return ErrNotActive
	}
	switch m.state {
	case AssigningPilot:
		m.mu.Unlock()
		m.resolvePilot(false)
		return nil
	case Playing:
	default:
		state := m.state
		m.mu.Unlock()
		logger.Error().Str("state", state.String()).Msg("game over outside of play")
		return ErrNotActive
	}
	m.state = Busy
	title := m.recName
	sid := m.serving
	m.mu.Unlock()
	logger.Info().Str("cause", cause).Msg("round over")

	sess, ok := m.deps.Registry.ByPeer(peer)
	if !ok {
		// Disconnected participants forfeit the card and reward.
		if err := m.deps.Recorder.StopRecording(ctx); err != nil {
			logger.Error().Err(err).Msg("stop recording")
		}
		m.finish(ctx, sid, true)
		return nil
	}
	sess.SetDeathCause(cause)

	videoRef := m.collectVideo(ctx, title)

	file, err := m.requestCard(ctx, peer)
	if err != nil {
		logger.Error().Err(err).Msg("card generation")
	} else {
		m.issueReward(ctx, sess, file, videoRef)
	}

	m.deps.Registry.LinkPeer(sess.ID(), "")
	if sess.State() != domain.StateDisconnected {
		sess.Release()
	}
	m.finish(ctx, sid, true)
	return nil
}

// collectVideo stops the recording and waits for the uploaded video reference.
func (m *Machine) collectVideo(ctx context.Context, title string) string {
	logger := log.With().Str("module", "show").Str("recording", title).Logger()

	recording := m.deps.Recorder.Connected()
	var a *awaiter[string]
	if recording {
		m.mu.Lock()
		a = replace(&m.video)
		m.mu.Unlock()
	}
	if err := m.deps.Recorder.StopRecording(ctx); err != nil {
		logger.Error().Err(err).Msg("stop recording")
		if a != nil {
			a.fail(err)
		}
	}
	if err := m.deps.Recorder.SwitchScene(ctx, m.cfg.PostScene); err != nil {
		logger.Error().Err(err).Str("scene", m.cfg.PostScene).Msg("switch scene")
	}
	if a == nil {
		return ""
	}
	ref, err := a.wait(ctx, m.cfg.VideoTimeout)
	if err != nil {
		logger.Error().Err(err).Msg("video not ready")
		return ""
	}
	logger.Info().Str("video", ref).Msg("video ready")
	return ref
}

func (m *Machine) requestCard(ctx context.Context, peer domain.PeerHandle) (string, error) {
	m.mu.Lock()
	if m.state != Busy {
		m.mu.Unlock()
		return "", ErrDetached
	}
	m.state = GeneratingCard
	a := replace(&m.card)
	m.mu.Unlock()

	m.sendControl("generateCard", string(peer))
	return a.wait(ctx, m.cfg.CardTimeout)
}

// issueReward stores the souvenir and credits it on the ledger. The local
// achievement is appended only after the ledger accepted the reward.
func (m *Machine) issueReward(ctx context.Context, sess *domain.Session, file, videoRef string) {
	logger := log.With().Str("module", "show").Str("sid", string(sess.ID())).Str("participant", string(sess.ParticipantID())).Logger()
	if m.deps.Cards == nil || m.deps.Store == nil {
		logger.Warn().Msg("no card pipeline configured")
		return
	}
	rec := sess.Record()
	art, err := m.deps.Cards.Build(file, card.Facts{
		ShowName:     m.cfg.ShowName,
		Turn:         sess.Turn(),
		ADN:          rec.ADN,
		DisplayName:  rec.DisplayName,
		CauseOfDeath: rec.DeathCause,
		IntroWords:   rec.IntroText,
		LastWords:    rec.LastWords,
		Video:        videoRef,
	})
	if err != nil {
		logger.Error().Err(err).Str("file", file).Msg("build card")
		return
	}
	uri, err := m.deps.Store.Store(ctx, art)
	if err != nil {
		logger.Error().Err(err).Msg("store card")
		return
	}
	token, err := m.deps.Ledger.RewardGameToken(ctx, sess.ParticipantID(), uri)
	if err != nil {
		logger.Error().Err(err).Str("uri", uri).Msg("reward token")
		return
	}
	sess.AddAchievement(token)
	logger.Info().Str("uri", uri).Str("token", token).Msg("card rewarded")
}

// CardGenerated resolves the outstanding card request with the rendered file.
func (m *Machine) CardGenerated(file string) bool {
	m.mu.Lock()
	a := m.card
	m.mu.Unlock()
	if a == nil || file == "" {
		return false
	}
	return a.resolve(file, nil)
}

// HandleRecordingStopped uploads the finished recording and resolves the
// outstanding video wait with its reference.
func (m *Machine) HandleRecordingStopped(ctx context.Context, path string) {
	m.mu.Lock()
	a := m.video
	title := m.recName
	m.mu.Unlock()
	logger := log.With().Str("module", "show").Str("path", path).Logger()
	if a == nil {
		logger.Warn().Msg("recording stopped with nobody waiting")
		return
	}
	if m.deps.Video == nil {
		a.resolve("", nil)
		return
	}
	if title == "" {
		title = m.cfg.ShowName
	}
	ref, err := m.deps.Video.Upload(ctx, path, title)
	if err != nil {
		logger.Error().Err(err).Msg("upload recording")
		a.fail(err)
		return
	}
	a.resolve(ref, nil)
}

// AddScore credits points to the active participant.
func (m *Machine) AddScore(ctx context.Context, peer domain.PeerHandle, points int) error {
	sess, err := m.activeSession(peer)
	if err != nil {
		return err
	}
	total := sess.AddScore(points)
	if _, err := m.deps.Ledger.RewardPoints(ctx, sess.ParticipantID(), points); err != nil {
		log.Error().Err(err).Str("module", "show").Str("peer", string(peer)).Msg("reward points")
		return err
	}
	log.Info().Str("module", "show").Str("peer", string(peer)).Int("score", total).Msg("score updated")
	return nil
}

// RewardPlayer issues an in-game reward to the active participant.
func (m *Machine) RewardPlayer(ctx context.Context, peer domain.PeerHandle, rewardID string) error {
	sess, err := m.activeSession(peer)
	if err != nil {
		return err
	}
	token, err := m.deps.Ledger.RewardGameToken(ctx, sess.ParticipantID(), rewardID)
	if err != nil {
		log.Error().Err(err).Str("module", "show").Str("peer", string(peer)).Msg("reward player")
		return err
	}
	sess.AddAchievement(token)
	return nil
}

func (m *Machine) activeSession(peer domain.PeerHandle) (*domain.Session, error) {
	m.mu.Lock()
	ok := peer != "" && m.active == peer && m.state == Playing
	m.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "show").Str("peer", string(peer)).Msg("event for inactive peer")
		return nil, ErrNotActive
	}
	sess, found := m.deps.Registry.ByPeer(peer)
	if !found {
		return nil, ErrParticipantGone
	}
	return sess, nil
}
