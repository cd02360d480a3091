// Package ledger provides the two ledger drivers: an in-process book for
// local runs and an HTTP client of a ledger gateway.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownUser  = fmt.Errorf("unknown user: %w", core.ErrNotFound)
	ErrBadSecret    = errors.New("secret does not match unlock key")
	ErrOwnerAlready = errors.New("user already owned")
)

type memUser struct {
	sid       domain.SessionID
	unlockKey string
	turn      int
	account   string
	points    int
	tokens    []string
}

// Memory is a ledger kept in process memory. Turns are issued from a
// monotonically increasing counter; every confirmed change is announced on
// Events.
type Memory struct {
	mu       sync.Mutex
	users    map[domain.ParticipantID]*memUser
	line     []domain.ParticipantID
	lastID   int
	lastTurn int
	lastTok  int
	failures map[string]error

	events chan core.LedgerEvent
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{
		users:    make(map[domain.ParticipantID]*memUser),
		failures: make(map[string]error),
		events:   make(chan core.LedgerEvent, buffer),
	}
}

// FailNext makes the next call of op ("AllocateUser", "AddToLine", ...) return err.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// injected returns and clears the failure armed for op. Callers hold mu.
func (m *Memory) injected(op string) error {
	err, ok := m.failures[op]
	if !ok {
		return nil
	}
	delete(m.failures, op)
	return err
}

func (m *Memory) emit(ev core.LedgerEvent) {
	select {
	case m.events <- ev:
	default:
		log.Warn().Str("module", "ledger.memory").Str("kind", string(ev.Kind)).Msg("event buffer full, dropping")
	}
}

func (m *Memory) Events() <-chan core.LedgerEvent { return m.events }

func (m *Memory) AllocateUser(_ context.Context, sid domain.SessionID, unlockKey string) (domain.ParticipantID, error) {
	m.mu.Lock()
	if err := m.injected("AllocateUser"); err != nil {
		m.mu.Unlock()
		return domain.NoParticipant, err
	}
	m.lastID++
	pid := domain.ParticipantID(strconv.Itoa(m.lastID))
	m.users[pid] = &memUser{sid: sid, unlockKey: unlockKey}
	m.mu.Unlock()

	m.emit(core.LedgerEvent{Kind: core.EventUserAllocated, Participant: pid, Session: sid})
	return pid, nil
}

// AddToLine appends pid and issues its turn. A participant already in line
// gets its current turn back.
func (m *Memory) AddToLine(_ context.Context, pid domain.ParticipantID) (int, error) {
	m.mu.Lock()
	if err := m.injected("AddToLine"); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	u, ok := m.users[pid]
	if !ok {
		m.mu.Unlock()
		return 0, ErrUnknownUser
	}
	if u.turn > 0 {
		turn := u.turn
		m.mu.Unlock()
		return turn, nil
	}
	m.lastTurn++
	u.turn = m.lastTurn
	m.line = append(m.line, pid)
	turn := u.turn
	m.mu.Unlock()

	m.emit(core.LedgerEvent{Kind: core.EventTurnAssigned, Participant: pid, Value: strconv.Itoa(turn)})
	return turn, nil
}

// Peek removes the head of the line. An empty line yields NoParticipant.
func (m *Memory) Peek(context.Context) (domain.ParticipantID, error) {
	m.mu.Lock()
	if err := m.injected("Peek"); err != nil {
		m.mu.Unlock()
		return domain.NoParticipant, err
	}
	if len(m.line) == 0 {
		m.mu.Unlock()
		return domain.NoParticipant, nil
	}
	pid := m.line[0]
	m.line = m.line[1:]
	if u, ok := m.users[pid]; ok {
		u.turn = 0
	}
	m.mu.Unlock()

	m.emit(core.LedgerEvent{Kind: core.EventLinePeeked, Participant: pid})
	return pid, nil
}

func (m *Memory) Line(context.Context) ([]domain.ParticipantID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("Line"); err != nil {
		return nil, err
	}
	return slices.Clone(m.line), nil
}

func (m *Memory) UserTurn(_ context.Context, pid domain.ParticipantID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("UserTurn"); err != nil {
		return 0, err
	}
	u, ok := m.users[pid]
	if !ok {
		return 0, ErrUnknownUser
	}
	return u.turn, nil
}

func (m *Memory) RewardGameToken(_ context.Context, pid domain.ParticipantID, uri string) (string, error) {
	m.mu.Lock()
	if err := m.injected("RewardGameToken"); err != nil {
		m.mu.Unlock()
		return "", err
	}
	u, ok := m.users[pid]
	if !ok {
		m.mu.Unlock()
		return "", ErrUnknownUser
	}
	m.lastTok++
	token := "token-" + strconv.Itoa(m.lastTok)
	u.tokens = append(u.tokens, token)
	m.mu.Unlock()

	m.emit(core.LedgerEvent{Kind: core.EventTokenRewarded, Participant: pid, Value: uri})
	return token, nil
}

func (m *Memory) RewardPoints(_ context.Context, pid domain.ParticipantID, points int) (int, error) {
	m.mu.Lock()
	if err := m.injected("RewardPoints"); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	u, ok := m.users[pid]
	if !ok {
		m.mu.Unlock()
		return 0, ErrUnknownUser
	}
	u.points += points
	total := u.points
	m.mu.Unlock()

	m.emit(core.LedgerEvent{Kind: core.EventPointsRewarded, Participant: pid, Value: strconv.Itoa(total)})
	return total, nil
}

// SetUserOwnership binds account to pid once secret proves the unlock key.
func (m *Memory) SetUserOwnership(_ context.Context, pid domain.ParticipantID, account, secret string) error {
	key, err := domain.DeriveUnlockKey(secret)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("SetUserOwnership"); err != nil {
		return err
	}
	u, ok := m.users[pid]
	switch {
	case !ok:
		return ErrUnknownUser
	case u.unlockKey != key:
		return ErrBadSecret
	case u.account != "" && u.account != account:
		return ErrOwnerAlready
	}
	u.account = account
	return nil
}

// Tokens lists the tokens rewarded to pid.
func (m *Memory) Tokens(pid domain.ParticipantID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[pid]; ok {
		return slices.Clone(u.tokens)
	}
	return nil
}
