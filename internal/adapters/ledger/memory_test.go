package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(m *Memory) []core.LedgerEventKind {
	var kinds []core.LedgerEventKind
	for {
		select {
		case ev := <-m.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestMemory_LineLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	p1, err := m.AllocateUser(ctx, "s1", "k1")
	require.NoError(t, err)
	p2, err := m.AllocateUser(ctx, "s2", "k2")
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	t1, err := m.AddToLine(ctx, p1)
	require.NoError(t, err)
	t2, err := m.AddToLine(ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, 1, t1)
	assert.Equal(t, 2, t2)

	again, err := m.AddToLine(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, t1, again, "already in line keeps its turn")

	line, err := m.Line(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{p1, p2}, line)

	head, err := m.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, p1, head)
	turn, err := m.UserTurn(ctx, p1)
	require.NoError(t, err)
	assert.Zero(t, turn)

	// turns never repeat
	t3, err := m.AddToLine(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, 3, t3)

	assert.Equal(t, []core.LedgerEventKind{
		core.EventUserAllocated, core.EventUserAllocated,
		core.EventTurnAssigned, core.EventTurnAssigned,
		core.EventLinePeeked, core.EventTurnAssigned,
	}, drain(m))
}

func TestMemory_EmptyPeek(t *testing.T) {
	pid, err := NewMemory(1).Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NoParticipant, pid)
}

func TestMemory_UnknownUser(t *testing.T) {
	m := NewMemory(1)
	_, err := m.AddToLine(context.Background(), "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = m.UserTurn(context.Background(), "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemory_Rewards(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(8)
	pid, _ := m.AllocateUser(ctx, "s", "k")

	total, err := m.RewardPoints(ctx, pid, 5)
	require.NoError(t, err)
	total, err = m.RewardPoints(ctx, pid, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, total)

	tok, err := m.RewardGameToken(ctx, pid, "ipfs://card")
	require.NoError(t, err)
	assert.Equal(t, []string{tok}, m.Tokens(pid))
}

func TestMemory_Ownership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4)
	key, _ := domain.DeriveUnlockKey("pw")
	pid, _ := m.AllocateUser(ctx, "s", key)

	assert.ErrorIs(t, m.SetUserOwnership(ctx, pid, "alice", "nope"), ErrBadSecret)
	require.NoError(t, m.SetUserOwnership(ctx, pid, "alice", "pw"))
	require.NoError(t, m.SetUserOwnership(ctx, pid, "alice", "pw"))
	assert.ErrorIs(t, m.SetUserOwnership(ctx, pid, "bob", "pw"), ErrOwnerAlready)
}

func TestMemory_FailNext(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4)
	boom := errors.New("boom")
	m.FailNext("AllocateUser", boom)

	_, err := m.AllocateUser(ctx, "s", "k")
	assert.ErrorIs(t, err, boom)
	_, err = m.AllocateUser(ctx, "s", "k")
	assert.NoError(t, err, "failure fires once")
}
