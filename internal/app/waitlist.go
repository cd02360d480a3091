package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyQueued   = errors.New("participant already has a turn")
	ErrRequestInFlight = errors.New("turn request already in progress")
)

// LineSnapshot is a copy of the local line cache.
type LineSnapshot struct {
	Line        []domain.ParticipantID `json:"line"`
	CurrentTurn int                    `json:"currentTurn"`
}

// Waitlist caches the ledger's line and is the only writer of that cache.
type Waitlist struct {
	mu          sync.RWMutex
	line        []domain.ParticipantID
	currentTurn int

	// guards inflight and the turn check/assign that must be atomic with it
	reqMu    sync.Mutex
	inflight map[domain.ParticipantID]struct{}

	// one ledger read at a time; covered is the last request ticket a
	// completed read is known to include
	syncSem   chan struct{}
	requested atomic.Uint64
	covered   uint64

	ledger   core.Ledger
	registry *Registry

	listenerMu sync.RWMutex
	onChange   func()
}

func NewWaitlist(ledger core.Ledger, registry *Registry) *Waitlist {
	return &Waitlist{
		inflight: make(map[domain.ParticipantID]struct{}),
		syncSem:  make(chan struct{}, 1),
		ledger:   ledger,
		registry: registry,
	}
}

// OnChange registers the listener fired after every successful sync.
func (w *Waitlist) OnChange(fn func()) {
	w.listenerMu.Lock()
	defer w.listenerMu.Unlock()
	w.onChange = fn
}

// SyncLine replaces the cache with the ledger's order. Overlapping callers
// are serialized; a caller returns early only when a read that started after
// its own request has already landed, so the cache never predates the call.
func (w *Waitlist) SyncLine(ctx context.Context) error {
	ticket := w.requested.Add(1)
	select {
	case w.syncSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if w.covered >= ticket {
		<-w.syncSem
		return nil
	}
	start := w.requested.Load()
	err := w.syncLine(ctx)
	if err == nil {
		w.covered = start
	}
	<-w.syncSem
	if err != nil {
		return err
	}

	w.listenerMu.RLock()
	fn := w.onChange
	w.listenerMu.RUnlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (w *Waitlist) syncLine(ctx context.Context) error {
	logger := log.With().Str("module", "app.waitlist").Logger()
	line, err := w.ledger.Line(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("line sync failed")
		return fmt.Errorf("fetch line: %w", err)
	}
	turn := 0
	if len(line) > 0 {
		turn, err = w.ledger.UserTurn(ctx, line[0])
		if err != nil {
			logger.Error().Err(err).Msg("head turn lookup failed")
			return fmt.Errorf("fetch head turn: %w", err)
		}
	}

	w.mu.Lock()
	w.line = slices.Clone(line)
	w.currentTurn = turn
	w.mu.Unlock()

	logger.Info().Strs("line", participantStrings(line)).Int("current_turn", turn).Msg("line synced")
	return nil
}

// RequestTurn appends the session's participant to the ledger line. At most
// one ledger append is in flight per participant.
func (w *Waitlist) RequestTurn(ctx context.Context, sess *domain.Session) (int, error) {
	logger := log.With().Str("module", "app.waitlist").Str("sid", string(sess.ID())).Logger()
	if !sess.IsAllocated() {
		logger.Warn().Msg("turn requested before allocation")
		return 0, ErrNotAllocated
	}
	pid := sess.ParticipantID()

	w.reqMu.Lock()
	if turn := sess.Turn(); turn > 0 {
		w.reqMu.Unlock()
		logger.Warn().Int("turn", turn).Msg("turn already assigned")
		return turn, ErrAlreadyQueued
	}
	if _, busy := w.inflight[pid]; busy {
		w.reqMu.Unlock()
		logger.Warn().Str("participant", string(pid)).Msg("turn request already in progress")
		return 0, ErrRequestInFlight
	}
	w.inflight[pid] = struct{}{}
	w.reqMu.Unlock()
	defer w.release(pid)

	turn, err := w.ledger.AddToLine(ctx, pid)
	if err == nil && turn <= 0 {
		err = fmt.Errorf("ledger returned turn %d", turn)
	}
	if err != nil {
		logger.Error().Err(err).Str("participant", string(pid)).Msg("add to line failed")
		return 0, fmt.Errorf("add to line: %w", err)
	}

	w.reqMu.Lock()
	delete(w.inflight, pid)
	w.registry.AssignTurn(sess.ID(), turn)
	w.reqMu.Unlock()
	logger.Info().Str("participant", string(pid)).Int("turn", turn).Msg("turn assigned")

	if err := w.SyncLine(ctx); err != nil {
		logger.Warn().Err(err).Msg("sync after turn request")
	}
	return turn, nil
}

func (w *Waitlist) release(pid domain.ParticipantID) {
	w.reqMu.Lock()
	delete(w.inflight, pid)
	w.reqMu.Unlock()
}

// InFlight reports whether a turn request for pid is outstanding.
func (w *Waitlist) InFlight(pid domain.ParticipantID) bool {
	w.reqMu.Lock()
	defer w.reqMu.Unlock()
	_, ok := w.inflight[pid]
	return ok
}

// PeekNext removes the head of the ledger line and re-syncs. An empty local
// cache returns NoParticipant without calling the ledger.
func (w *Waitlist) PeekNext(ctx context.Context) (domain.ParticipantID, error) {
	if w.Len() == 0 {
		return domain.NoParticipant, nil
	}
	logger := log.With().Str("module", "app.waitlist").Logger()
	pid, err := w.ledger.Peek(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("line peek failed")
	} else {
		logger.Info().Str("participant", string(pid)).Msg("removed from line")
	}
	if serr := w.SyncLine(ctx); serr != nil {
		logger.Warn().Err(serr).Msg("sync after peek")
	}
	if err != nil {
		return domain.NoParticipant, fmt.Errorf("peek line: %w", err)
	}
	return pid, nil
}

// HeadOfLine resolves the first cached entry to a live session. nil means
// the participant is not connected and should be skipped.
func (w *Waitlist) HeadOfLine() *domain.Session {
	return w.resolve(0)
}

// SecondInLine resolves the second cached entry.
func (w *Waitlist) SecondInLine() *domain.Session {
	return w.resolve(1)
}

func (w *Waitlist) resolve(i int) *domain.Session {
	w.mu.RLock()
	if i >= len(w.line) {
		w.mu.RUnlock()
		return nil
	}
	pid := w.line[i]
	w.mu.RUnlock()
	sess, ok := w.registry.ByParticipant(pid)
	if !ok {
		return nil
	}
	return sess
}

func (w *Waitlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.line)
}

func (w *Waitlist) Snapshot() LineSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return LineSnapshot{Line: slices.Clone(w.line), CurrentTurn: w.currentTurn}
}

// Watch re-syncs on ledger line events and every period until ctx ends.
func (w *Waitlist) Watch(ctx context.Context, period time.Duration) error {
	var tick <-chan time.Time
	if period > 0 {
		t := time.NewTicker(period)
		defer t.Stop()
		tick = t.C
	}
	events := w.ledger.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			_ = w.SyncLine(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Kind {
			case core.EventTurnAssigned, core.EventLinePeeked:
				_ = w.SyncLine(ctx)
			}
		}
	}
}

func participantStrings(ids []domain.ParticipantID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
