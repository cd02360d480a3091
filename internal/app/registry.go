package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrAllocationInProgress = errors.New("allocation in progress")
	ErrNotAllocated         = errors.New("participant not allocated")
	ErrParticipantOnline    = errors.New("participant already connected")
)

type sessionEntry struct {
	Session *domain.Session
	Signal  core.SignalConnection
	Cancel  context.CancelFunc
}

// Registry owns every connected Session and the indices that resolve
// participant ids and peer handles back to them.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[domain.SessionID]*sessionEntry
	byParticipant map[domain.ParticipantID]domain.SessionID
	byPeer        map[domain.PeerHandle]domain.SessionID

	ledger core.Ledger
	creds  core.CredentialStore
}

func NewRegistry(ledger core.Ledger, creds core.CredentialStore) *Registry {
	return &Registry{
		sessions:      make(map[domain.SessionID]*sessionEntry),
		byParticipant: make(map[domain.ParticipantID]domain.SessionID),
		byPeer:        make(map[domain.PeerHandle]domain.SessionID),
		ledger:        ledger,
		creds:         creds,
	}
}

// Register returns the session for sid, creating it in Connecting state.
func (r *Registry) Register(sid domain.SessionID) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session
	}
	sess := domain.NewSession(sid)
	r.sessions[sid] = &sessionEntry{Session: sess}
	r.byParticipant[sess.ParticipantID()] = sid
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered session")
	return sess
}

func (r *Registry) BindSignal(sid domain.SessionID, conn core.SignalConnection, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Signal = conn
	e.Cancel = cancel
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
	return true
}

// Send delivers msg to the session's transport, if it has one.
func (r *Registry) Send(sid domain.SessionID, msg core.Message) error {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	var conn core.SignalConnection
	if ok {
		conn = e.Signal
	}
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	if conn == nil {
		// HTTP-only participants poll for their state instead.
		return nil
	}
	return core.Send(conn, msg)
}

func (r *Registry) Get(sid domain.SessionID) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) ByParticipant(pid domain.ParticipantID) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byParticipant[pid]
	if !ok {
		return nil, false
	}
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Session, true
}

func (r *Registry) ByPeer(peer domain.PeerHandle) (*domain.Session, bool) {
	if peer == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byPeer[peer]
	if !ok {
		return nil, false
	}
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Session, true
}

// IsConnected reports whether sid exists and has completed the ack handshake.
func (r *Registry) IsConnected(sid domain.SessionID) bool {
	sess, ok := r.Get(sid)
	return ok && sess.State() != domain.StateConnecting
}

func (r *Registry) Acknowledge(sid domain.SessionID, key string) bool {
	sess, ok := r.Get(sid)
	if !ok {
		return false
	}
	if !sess.Acknowledge(key) {
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("ack rejected")
		return false
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("acknowledged")
	return true
}

// AllocateIdentity asks the ledger for a participant id bound to secret.
// A session that already has an id gets it back without a ledger call.
func (r *Registry) AllocateIdentity(ctx context.Context, sid domain.SessionID, secret string) (domain.ParticipantID, error) {
	sess, ok := r.Get(sid)
	if !ok {
		return domain.NoParticipant, ErrSessionNotFound
	}
	prev, ok := sess.BeginAllocation()
	if !ok {
		if sess.IsAllocated() {
			return sess.ParticipantID(), nil
		}
		return domain.NoParticipant, ErrAllocationInProgress
	}

	key, err := domain.DeriveUnlockKey(secret)
	if err != nil {
		sess.EndAllocation(prev, domain.NoParticipant)
		return domain.NoParticipant, err
	}

	logger := log.With().Str("module", "app.registry").Str("sid", string(sid)).Logger()
	logger.Info().Msg("allocating participant on ledger")

	pid, err := r.ledger.AllocateUser(ctx, sid, key)
	if err == nil && pid == domain.NoParticipant {
		err = errors.New("ledger returned empty participant id")
	}
	if err != nil {
		sess.EndAllocation(prev, domain.NoParticipant)
		logger.Error().Err(err).Msg("allocation failed")
		return domain.NoParticipant, fmt.Errorf("allocate participant: %w", err)
	}
	sess.EndAllocation(prev, pid)
	r.reindex(sid, domain.ParticipantID(sid), pid)
	logger.Info().Str("participant", string(pid)).Msg("participant allocated")

	cred := core.Credential{ParticipantID: pid, UnlockKey: key}
	if err := r.creds.SaveCredential(ctx, cred); err != nil {
		logger.Error().Err(err).Str("participant", string(pid)).Msg("persist credential")
	}
	return pid, nil
}

// Recover binds the session to a previously allocated participant when
// password matches the stored unlock key. A mismatch mutates nothing.
func (r *Registry) Recover(ctx context.Context, sid domain.SessionID, pid domain.ParticipantID, password string) (bool, error) {
	sess, ok := r.Get(sid)
	if !ok {
		return false, ErrSessionNotFound
	}
	key, err := domain.DeriveUnlockKey(password)
	if err != nil {
		return false, nil
	}
	cred, err := r.creds.GetCredential(ctx, pid)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load credential: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(cred.UnlockKey), []byte(key)) != 1 {
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Str("participant", string(pid)).Msg("recovery key mismatch")
		return false, nil
	}
	if other, ok := r.ByParticipant(pid); ok && other != sess {
		return false, ErrParticipantOnline
	}

	prevPID := sess.ParticipantID()
	if !sess.AdoptParticipant(pid) {
		return false, nil
	}
	r.reindex(sid, prevPID, pid)
	if cred.Account != "" {
		_ = sess.LinkAccount(cred.Account)
	}

	logger := log.With().Str("module", "app.registry").Str("sid", string(sid)).Str("participant", string(pid)).Logger()
	turn, err := r.ledger.UserTurn(ctx, pid)
	if err != nil {
		logger.Error().Err(err).Msg("sync turn after recovery")
	} else if turn > 0 {
		sess.AssignTurn(turn)
	}
	logger.Info().Int("turn", sess.Turn()).Msg("session recovered")
	return true, nil
}

// LinkAccount binds an external ledger account to an allocated participant.
func (r *Registry) LinkAccount(ctx context.Context, sid domain.SessionID, account, secret string) error {
	sess, ok := r.Get(sid)
	if !ok {
		return ErrSessionNotFound
	}
	if !sess.IsAllocated() {
		return ErrNotAllocated
	}
	if cur := sess.Account(); cur != "" {
		if cur == account {
			return nil
		}
		return domain.ErrAccountLinked
	}
	pid := sess.ParticipantID()
	if err := r.ledger.SetUserOwnership(ctx, pid, account, secret); err != nil {
		return fmt.Errorf("set ownership: %w", err)
	}
	if err := r.creds.SetAccount(ctx, pid, account); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("participant", string(pid)).Msg("persist account")
	}
	if err := sess.LinkAccount(account); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("participant", string(pid)).Str("account", account).Msg("account linked")
	return nil
}

// AssignTurn records a ledger-issued turn on the session.
func (r *Registry) AssignTurn(sid domain.SessionID, turn int) bool {
	sess, ok := r.Get(sid)
	if !ok {
		return false
	}
	sess.AssignTurn(turn)
	return true
}

// LinkPeer sets (or clears with "") the live-control handle of sid. A handle
// is held by one session at most.
func (r *Registry) LinkPeer(sid domain.SessionID, peer domain.PeerHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if old := e.Session.PeerHandle(); old != "" && r.byPeer[old] == sid {
		delete(r.byPeer, old)
	}
	if peer != "" {
		if other, ok := r.byPeer[peer]; ok && other != sid {
			if oe, ok := r.sessions[other]; ok {
				oe.Session.SetPeer("")
			}
		}
		r.byPeer[peer] = sid
	}
	e.Session.SetPeer(peer)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("peer", string(peer)).Msg("linked peer")
	return true
}

// Evict drops every index for sid and marks the session Disconnected.
func (r *Registry) Evict(sid domain.SessionID) (*domain.Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.sessions, sid)
	if pid := e.Session.ParticipantID(); r.byParticipant[pid] == sid {
		delete(r.byParticipant, pid)
	}
	if peer := e.Session.PeerHandle(); peer != "" && r.byPeer[peer] == sid {
		delete(r.byPeer, peer)
	}
	r.mu.Unlock()

	e.Session.SetState(domain.StateDisconnected)
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("evicted session")
	return e.Session, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountInState counts sessions currently in state.
func (r *Registry) CountInState(state domain.LifecycleState) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.Session.State() == state {
			n++
		}
	}
	return n
}

func (r *Registry) reindex(sid domain.SessionID, from, to domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	if r.byParticipant[from] == sid {
		delete(r.byParticipant, from)
	}
	r.byParticipant[to] = sid
}
