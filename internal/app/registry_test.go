package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/core/mock"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sink struct{ frames []core.Frame }

func (s *sink) TrySend(f core.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func (s *sink) Close() {}

func newTestRegistry(t *testing.T) (*Registry, *mock.MockLedger, *mock.MockCredentialStore) {
	ctrl := gomock.NewController(t)
	ledger := mock.NewMockLedger(ctrl)
	creds := mock.NewMockCredentialStore(ctrl)
	return NewRegistry(ledger, creds), ledger, creds
}

func TestRegistry_RegisterAndSend(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	sess := r.Register("S1")
	assert.Same(t, sess, r.Register("S1"))
	assert.Equal(t, 1, r.Count())
	assert.False(t, r.IsConnected("S1"))

	// HTTP-only sessions silently drop pushes
	require.NoError(t, r.Send("S1", core.NewMessage("connected", "")))

	out := &sink{}
	require.True(t, r.BindSignal("S1", out, nil))
	require.NoError(t, r.Send("S1", core.NewMessage("connected", "S1")))
	assert.Equal(t, []core.Frame{core.Frame("connected:S1")}, out.frames)

	assert.ErrorIs(t, r.Send("nope", core.NewMessage("x", "")), ErrSessionNotFound)
	assert.False(t, r.Acknowledge("S1", "S2"))
	assert.True(t, r.Acknowledge("S1", "S1"))
	assert.True(t, r.IsConnected("S1"))
	assert.Equal(t, 1, r.CountInState(domain.StateConnected))
}

func TestRegistry_AllocateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("allocates once", func(t *testing.T) {
		r, ledger, creds := newTestRegistry(t)
		sess := r.Register("S1")
		r.Acknowledge("S1", "S1")

		key, err := domain.DeriveUnlockKey("pw")
		require.NoError(t, err)
		ledger.EXPECT().AllocateUser(gomock.Any(), domain.SessionID("S1"), key).Return(domain.ParticipantID("P1"), nil)
		creds.EXPECT().SaveCredential(gomock.Any(), core.Credential{ParticipantID: "P1", UnlockKey: key}).Return(nil)

		pid, err := r.AllocateIdentity(ctx, "S1", "pw")
		require.NoError(t, err)
		assert.Equal(t, domain.ParticipantID("P1"), pid)
		assert.Equal(t, domain.StateConnected, sess.State())

		got, ok := r.ByParticipant("P1")
		require.True(t, ok)
		assert.Same(t, sess, got)
		_, ok = r.ByParticipant("S1")
		assert.False(t, ok)

		// second call returns the same id without the ledger
		pid, err = r.AllocateIdentity(ctx, "S1", "pw")
		require.NoError(t, err)
		assert.Equal(t, domain.ParticipantID("P1"), pid)
	})

	t.Run("ledger failure reverts", func(t *testing.T) {
		r, ledger, _ := newTestRegistry(t)
		sess := r.Register("S1")
		r.Acknowledge("S1", "S1")
		ledger.EXPECT().AllocateUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.NoParticipant, errors.New("rpc down"))

		_, err := r.AllocateIdentity(ctx, "S1", "pw")
		require.Error(t, err)
		assert.False(t, sess.IsAllocated())
		assert.Equal(t, domain.StateConnected, sess.State())
	})

	t.Run("empty secret", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		r.Register("S1")
		_, err := r.AllocateIdentity(ctx, "S1", "")
		assert.ErrorIs(t, err, domain.ErrSecretEmpty)
	})

	t.Run("concurrent allocation is refused", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		sess := r.Register("S1")
		_, ok := sess.BeginAllocation()
		require.True(t, ok)
		_, err := r.AllocateIdentity(ctx, "S1", "pw")
		assert.ErrorIs(t, err, ErrAllocationInProgress)
	})
}

func TestRegistry_Recover(t *testing.T) {
	ctx := context.Background()
	key, err := domain.DeriveUnlockKey("pw")
	require.NoError(t, err)

	t.Run("matching key adopts identity", func(t *testing.T) {
		r, ledger, creds := newTestRegistry(t)
		sess := r.Register("S2")
		creds.EXPECT().GetCredential(gomock.Any(), domain.ParticipantID("P1")).
			Return(core.Credential{ParticipantID: "P1", UnlockKey: key, Account: "bug.testnet"}, nil)
		ledger.EXPECT().UserTurn(gomock.Any(), domain.ParticipantID("P1")).Return(4, nil)

		ok, err := r.Recover(ctx, "S2", "P1", "pw")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, domain.ParticipantID("P1"), sess.ParticipantID())
		assert.Equal(t, "bug.testnet", sess.Account())
		assert.Equal(t, 4, sess.Turn())
		assert.Equal(t, domain.StateQueued, sess.State())
	})

	t.Run("mismatch mutates nothing", func(t *testing.T) {
		r, _, creds := newTestRegistry(t)
		sess := r.Register("S2")
		creds.EXPECT().GetCredential(gomock.Any(), domain.ParticipantID("P1")).
			Return(core.Credential{ParticipantID: "P1", UnlockKey: key}, nil)

		ok, err := r.Recover(ctx, "S2", "P1", "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, sess.IsAllocated())
	})

	t.Run("unknown participant", func(t *testing.T) {
		r, _, creds := newTestRegistry(t)
		r.Register("S2")
		creds.EXPECT().GetCredential(gomock.Any(), gomock.Any()).Return(core.Credential{}, core.ErrNotFound)
		ok, err := r.Recover(ctx, "S2", "P9", "pw")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("identity held by another live session", func(t *testing.T) {
		r, ledger, creds := newTestRegistry(t)
		r.Register("S1")
		ledger.EXPECT().AllocateUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ParticipantID("P1"), nil)
		creds.EXPECT().SaveCredential(gomock.Any(), gomock.Any()).Return(nil)
		_, err := r.AllocateIdentity(ctx, "S1", "pw")
		require.NoError(t, err)

		r.Register("S2")
		creds.EXPECT().GetCredential(gomock.Any(), domain.ParticipantID("P1")).
			Return(core.Credential{ParticipantID: "P1", UnlockKey: key}, nil)
		_, err = r.Recover(ctx, "S2", "P1", "pw")
		assert.ErrorIs(t, err, ErrParticipantOnline)
	})
}

func TestRegistry_LinkAccount(t *testing.T) {
	ctx := context.Background()
	r, ledger, creds := newTestRegistry(t)
	r.Register("S1")
	assert.ErrorIs(t, r.LinkAccount(ctx, "S1", "bug.testnet", "pw"), ErrNotAllocated)

	ledger.EXPECT().AllocateUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ParticipantID("P1"), nil)
	creds.EXPECT().SaveCredential(gomock.Any(), gomock.Any()).Return(nil)
	_, err := r.AllocateIdentity(ctx, "S1", "pw")
	require.NoError(t, err)

	ledger.EXPECT().SetUserOwnership(gomock.Any(), domain.ParticipantID("P1"), "bug.testnet", "pw").Return(nil)
	creds.EXPECT().SetAccount(gomock.Any(), domain.ParticipantID("P1"), "bug.testnet").Return(nil)
	require.NoError(t, r.LinkAccount(ctx, "S1", "bug.testnet", "pw"))
	require.NoError(t, r.LinkAccount(ctx, "S1", "bug.testnet", "pw"))
	assert.ErrorIs(t, r.LinkAccount(ctx, "S1", "other.testnet", "pw"), domain.ErrAccountLinked)
}

func TestRegistry_LinkPeerIsUnique(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	a := r.Register("S1")
	b := r.Register("S2")

	require.True(t, r.LinkPeer("S1", "7"))
	require.True(t, r.LinkPeer("S2", "7"))
	assert.Empty(t, a.PeerHandle())
	got, ok := r.ByPeer("7")
	require.True(t, ok)
	assert.Same(t, b, got)

	require.True(t, r.LinkPeer("S2", ""))
	_, ok = r.ByPeer("7")
	assert.False(t, ok)
	assert.False(t, r.LinkPeer("nope", "8"))
}

func TestRegistry_Evict(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	sess := r.Register("S1")
	sess.AssignTurn(2)
	r.LinkPeer("S1", "7")
	canceled := false
	r.BindSignal("S1", &sink{}, func() { canceled = true })

	got, ok := r.Evict("S1")
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.True(t, canceled)
	assert.Equal(t, domain.StateDisconnected, sess.State())
	assert.Zero(t, sess.Turn())
	_, ok = r.ByPeer("7")
	assert.False(t, ok)
	_, ok = r.Get("S1")
	assert.False(t, ok)

	_, ok = r.Evict("S1")
	assert.False(t, ok)
}
