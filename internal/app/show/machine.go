// Package show runs the live slot: it admits one participant at a time into
// the live-control channel and takes them through play, recording, souvenir
// card and reward.
package show

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/app/card"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotReady          = errors.New("show not ready")
	ErrAlreadyAttached   = errors.New("live control already attached")
	ErrDetached          = errors.New("live control detached")
	ErrHandshakeTimeout  = errors.New("handshake timed out")
	ErrHandshakeFailed   = errors.New("handshake failed")
	ErrParticipantGone   = errors.New("participant disconnected")
	ErrPilotNotConfirmed = errors.New("pilot not confirmed")
	ErrNotActive         = errors.New("peer is not the active participant")
	ErrUnknownSecret     = errors.New("unknown or expired connection secret")
)

type Config struct {
	ShowName     string
	Prefix       string
	PollAttempts int
	PollInterval time.Duration
	PendingTTL   time.Duration
	PilotTimeout time.Duration
	CardTimeout  time.Duration
	VideoTimeout time.Duration
	LiveScene    string
	PostScene    string
}

func DefaultConfig() Config {
	return Config{
		ShowName:     "Hotseat",
		Prefix:       "gs_",
		PollAttempts: 60,
		PollInterval: 500 * time.Millisecond,
		PendingTTL:   30 * time.Second,
		PilotTimeout: 2 * time.Minute,
		CardTimeout:  time.Minute,
		VideoTimeout: 3 * time.Minute,
		LiveScene:    "live",
		PostScene:    "post-game",
	}
}

// CardBuilder turns the rendered card file into a storable artifact.
type CardBuilder interface {
	Build(file string, facts card.Facts) (core.Artifact, error)
}

type Deps struct {
	Registry *app.Registry
	Line     *app.Waitlist
	Ledger   core.Ledger
	Recorder core.Recorder
	Video    core.VideoHost
	Store    core.ArtifactStore
	Cards    CardBuilder
}

type pendingConnection struct {
	secret  string
	sid     domain.SessionID
	expires time.Time
	failed  bool
}

// Machine is the single writer of the show state, the active participant
// and the pending live-control handshakes.
type Machine struct {
	mu       sync.Mutex
	state    State
	active   domain.PeerHandle
	serving  domain.SessionID
	pending  map[string]*pendingConnection
	secret   string
	control  core.SignalConnection
	recName  string
	listener func(State)

	pilot *awaiter[bool]
	card  *awaiter[string]
	video *awaiter[string]

	cfg  Config
	deps Deps
}

func NewMachine(cfg Config, deps Deps) *Machine {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	return &Machine{
		state:   Offline,
		pending: make(map[string]*pendingConnection),
		cfg:     cfg,
		deps:    deps,
	}
}

// OnStateChange registers fn, called when the machine enters READY or OFFLINE.
func (m *Machine) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = fn
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Active() domain.PeerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Status is what the live-control process polls for.
type Status struct {
	GameState           string            `json:"gameState"`
	StateCode           int               `json:"stateCode"`
	CurrentPlayer       domain.PeerHandle `json:"currentPlayer,omitempty"`
	Serving             domain.SessionID  `json:"-"`
	SecretConnectionKey string            `json:"secretConnectionKey,omitempty"`
	PendingConnections  int               `json:"pendingConnections"`
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		GameState:           m.state.String(),
		StateCode:           int(m.state),
		CurrentPlayer:       m.active,
		Serving:             m.serving,
		SecretConnectionKey: m.secret,
		PendingConnections:  len(m.pending),
	}
}

// Attach binds the authoritative live-control channel: OFFLINE -> CONNECTING.
func (m *Machine) Attach(conn core.SignalConnection) error {
	m.mu.Lock()
	if m.state != Offline {
		m.mu.Unlock()
		return ErrAlreadyAttached
	}
	m.control = conn
	m.state = Connecting
	m.mu.Unlock()

	log.Info().Str("module", "show").Msg("live control attached")
	m.sendControl("connected", "1")
	return nil
}

// MarkReady handles the channel's ready signal: CONNECTING -> READY.
func (m *Machine) MarkReady() bool {
	if !m.advance(Connecting, Ready) {
		log.Warn().Str("module", "show").Str("state", m.State().String()).Msg("ready signal ignored")
		return false
	}
	log.Info().Str("module", "show").Msg("live control ready")
	return true
}

// Detach drops the live-control channel from any state. Every outstanding
// await fails with ErrDetached.
func (m *Machine) Detach() {
	m.mu.Lock()
	if m.state == Offline && m.control == nil {
		m.mu.Unlock()
		return
	}
	// A round in PLAYING has no step of its own waiting to clean up.
	var stranded domain.SessionID
	if m.state == Playing {
		stranded = m.serving
		m.active = ""
		m.serving = ""
	}
	m.state = Offline
	m.control = nil
	m.secret = ""
	clear(m.pending)
	if a := take(&m.pilot); a != nil {
		a.fail(ErrDetached)
	}
	for _, a := range []*awaiter[string]{take(&m.card), take(&m.video)} {
		if a != nil {
			a.fail(ErrDetached)
		}
	}
	fn := m.listener
	m.mu.Unlock()

	log.Warn().Str("module", "show").Msg("live control detached")
	if stranded != "" {
		if sess, ok := m.deps.Registry.Get(stranded); ok {
			m.deps.Registry.LinkPeer(stranded, "")
			sess.Release()
		}
		if err := m.deps.Recorder.StopRecording(context.Background()); err != nil {
			log.Error().Err(err).Str("module", "show").Msg("stop recording")
		}
	}
	if fn != nil {
		fn(Offline)
	}
}

// IsControl reports whether conn is the attached live-control channel.
func (m *Machine) IsControl(conn core.SignalConnection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return conn != nil && m.control == conn
}

// Prefix is the event namespace of the live-control channel.
func (m *Machine) Prefix() string { return m.cfg.Prefix }

// advance moves from -> to atomically and fires the listener if to notifies.
func (m *Machine) advance(from, to State) bool {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return false
	}
	m.state = to
	fn := m.listener
	m.mu.Unlock()
	if fn != nil && to.notifies() {
		fn(to)
	}
	return true
}

// set moves to `to` while a round is in progress. It fails once the channel
// detached (or detached and came back) underneath the round.
func (m *Machine) set(to State) bool {
	m.mu.Lock()
	if !m.state.inRound() {
		m.mu.Unlock()
		return false
	}
	m.state = to
	fn := m.listener
	m.mu.Unlock()
	if fn != nil && to.notifies() {
		fn(to)
	}
	return true
}

func (m *Machine) sendControl(event, payload string) {
	m.mu.Lock()
	conn := m.control
	m.mu.Unlock()
	if conn == nil {
		return
	}
	if err := core.Send(conn, core.NewMessage(m.cfg.Prefix+event, payload)); err != nil {
		log.Error().Err(err).Str("module", "show").Str("event", event).Msg("send to live control")
	}
}

// PrestageNext tells the participant second in line to get ready.
func (m *Machine) PrestageNext(sess *domain.Session) {
	if sess == nil {
		return
	}
	if err := m.deps.Registry.Send(sess.ID(), core.NewMessage("gc_standby", strconv.Itoa(sess.Turn()))); err != nil {
		log.Warn().Err(err).Str("module", "show").Str("sid", string(sess.ID())).Msg("prestage next participant")
	}
}

func newSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
