package domain

import (
	"strings"
	"sync"
)

type LifecycleState int

const (
	StateConnecting LifecycleState = iota
	StateConnected
	StateQueued
	StateReadyToPlay
	StatePlaying
	StateBusy
	StateOutline
	StateDisconnected
)

var lifecycleNames = [...]string{
	StateConnecting:   "CONNECTING",
	StateConnected:    "CONNECTED",
	StateQueued:       "QUEUED",
	StateReadyToPlay:  "READY_TO_PLAY",
	StatePlaying:      "PLAYING",
	StateBusy:         "BUSY",
	StateOutline:      "OUTLINE",
	StateDisconnected: "DISCONNECTED",
}

func (s LifecycleState) String() string {
	if int(s) < 0 || int(s) >= len(lifecycleNames) {
		return "UNKNOWN"
	}
	return lifecycleNames[s]
}

// HoldsTurn reports whether a session in this state may keep a turn > 0.
func (s LifecycleState) HoldsTurn() bool {
	return s == StateQueued || s == StateReadyToPlay || s == StatePlaying
}

// Session is one connected participant. All fields are guarded; callers go
// through the setters below.
type Session struct {
	mu sync.RWMutex

	id          SessionID
	participant ParticipantID
	peer        PeerHandle
	account     string
	state       LifecycleState
	turn        int
	secret      string
	allocating  bool
	record      ShowRecord
}

func NewSession(id SessionID) *Session {
	return &Session{
		id:          id,
		participant: ParticipantID(id),
		state:       StateConnecting,
	}
}

func (s *Session) ID() SessionID { return s.id }

func (s *Session) ParticipantID() ParticipantID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participant
}

// IsAllocated reports whether the ledger has issued a participant id for this session.
func (s *Session) IsAllocated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participant != ParticipantID(s.id)
}

func (s *Session) PeerHandle() PeerHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peer
}

func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *Session) State() LifecycleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Turn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turn
}

func (s *Session) SecretKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

func (s *Session) Record() ShowRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.clone()
}

// Acknowledge moves Connecting -> Connected when key echoes the session id.
func (s *Session) Acknowledge(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting || key != string(s.id) {
		return false
	}
	s.state = StateConnected
	return true
}

// BeginAllocation marks the session Busy for an identity allocation. It
// returns false when an identity already exists or another allocation runs.
func (s *Session) BeginAllocation() (LifecycleState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocating || s.participant != ParticipantID(s.id) {
		return s.state, false
	}
	prev := s.state
	s.allocating = true
	s.state = StateBusy
	return prev, true
}

// EndAllocation restores the pre-allocation state and, on success, records
// the allocated participant id.
func (s *Session) EndAllocation(prev LifecycleState, pid ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocating = false
	s.state = prev
	if pid != NoParticipant {
		s.participant = pid
	}
}

// AdoptParticipant binds a recovered identity. Only a session without an
// allocated identity (or already holding pid) can adopt one.
func (s *Session) AdoptParticipant(pid ParticipantID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocating || pid == NoParticipant {
		return false
	}
	if s.participant != ParticipantID(s.id) && s.participant != pid {
		return false
	}
	s.participant = pid
	return true
}

// AssignTurn records the ledger turn and queues the session.
func (s *Session) AssignTurn(turn int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn <= 0 {
		return
	}
	s.turn = turn
	if !s.state.HoldsTurn() {
		s.state = StateQueued
	}
}

// SetState changes the lifecycle state; leaving the queued states drops the turn.
func (s *Session) SetState(state LifecycleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if !state.HoldsTurn() {
		s.turn = 0
	}
}

func (s *Session) SetPeer(peer PeerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = peer
}

func (s *Session) SetSecretKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = key
}

// LinkAccount binds an external ledger account; the binding is permanent.
func (s *Session) LinkAccount(account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return ErrAccountEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != "" && s.account != account {
		return ErrAccountLinked
	}
	s.account = account
	return nil
}

// Release ends the participant's turn: live-control linkage, secret and turn
// are cleared and the session goes Outline.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = ""
	s.secret = ""
	s.turn = 0
	s.state = StateOutline
}

func (s *Session) SetBug(adn, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if len(adn) > MaxADNLen {
		return ErrADNTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.ADN = adn
	s.record.DisplayName = strings.TrimSpace(name)
	return nil
}

func (s *Session) SetADN(adn string) error {
	if len(adn) > MaxADNLen {
		return ErrADNTooLong
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.ADN = adn
	return nil
}

func (s *Session) SetDisplayName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.DisplayName = strings.TrimSpace(name)
	return nil
}

func (s *Session) SetIntroWords(words string) error {
	if err := validateWords(words); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.IntroText = words
	return nil
}

func (s *Session) SetLastWords(words string) error {
	if err := validateWords(words); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.LastWords = words
	return nil
}

func (s *Session) SetDeathCause(cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.DeathCause = cause
}

func (s *Session) AddScore(points int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Score += points
	return s.record.Score
}

func (s *Session) AddAchievement(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Achievements = append(s.record.Achievements, id)
}

// SessionView is a read-only copy for APIs.
type SessionView struct {
	SessionID     SessionID     `json:"sessionID"`
	ParticipantID ParticipantID `json:"userID"`
	PeerHandle    PeerHandle    `json:"peerID,omitempty"`
	Account       string        `json:"account,omitempty"`
	State         string        `json:"state"`
	Turn          int           `json:"turn"`
	Record        ShowRecord    `json:"record"`
}

func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionView{
		SessionID:     s.id,
		ParticipantID: s.participant,
		PeerHandle:    s.peer,
		Account:       s.account,
		State:         s.state.String(),
		Turn:          s.turn,
		Record:        s.record.clone(),
	}
}
