package signal

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/app/orch"
	"github.com/dkeye/Hotseat/internal/app/show"
	"github.com/dkeye/Hotseat/internal/core/mock"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type gateway struct {
	ctl    *SignalWSController
	ledger *mock.MockLedger
	url    string

	mu   sync.Mutex
	line []domain.ParticipantID
}

func newGateway(t *testing.T, singleIP bool, cfg Config) *gateway {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	g := &gateway{ledger: mock.NewMockLedger(ctrl)}
	creds := mock.NewMockCredentialStore(ctrl)
	creds.EXPECT().SaveCredential(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	rec := mock.NewMockRecorder(ctrl)
	rec.EXPECT().Connected().Return(false).AnyTimes()
	g.ledger.EXPECT().Line(gomock.Any()).DoAndReturn(func(context.Context) ([]domain.ParticipantID, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return append([]domain.ParticipantID(nil), g.line...), nil
	}).AnyTimes()
	g.ledger.EXPECT().UserTurn(gomock.Any(), gomock.Any()).Return(1, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	reg := app.NewRegistry(g.ledger, creds)
	line := app.NewWaitlist(g.ledger, reg)
	machine := show.NewMachine(show.DefaultConfig(), show.Deps{Registry: reg, Line: line, Ledger: g.ledger, Recorder: rec})
	o := orch.New(ctx, reg, line, machine, app.SimplePolicy{SingleIP: singleIP}, rec)

	g.ctl = NewSignalWSController(o, cfg)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { g.ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	g.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return g
}

func (g *gateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(g.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func write(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// handshake reads the session id and acknowledges it.
func handshake(t *testing.T, ws *websocket.Conn) domain.SessionID {
	t.Helper()
	sid, ok := strings.CutPrefix(read(t, ws), "connecting:")
	require.True(t, ok)
	write(t, ws, "ack:"+sid)
	assert.Equal(t, "connected:1", read(t, ws))
	return domain.SessionID(sid)
}

func TestGateway_SingleIP(t *testing.T) {
	g := newGateway(t, true, Config{})
	first := g.dial(t)
	sid := handshake(t, first)

	second := g.dial(t)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := second.ReadMessage()
	assert.Error(t, err, "second connection is closed")

	sess, ok := g.ctl.Orch.Registry.Get(sid)
	require.True(t, ok)
	assert.Equal(t, domain.StateConnected, sess.State())
	assert.Equal(t, 1, g.ctl.Orch.Registry.Count())
	assert.Equal(t, map[string]int{"127.0.0.1": 1}, g.ctl.Sources())
}

func TestGateway_AckGraceEvicts(t *testing.T) {
	g := newGateway(t, false, Config{AckGrace: 50 * time.Millisecond})
	ws := g.dial(t)
	assert.True(t, strings.HasPrefix(read(t, ws), "connecting:"))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return g.ctl.Orch.Registry.Count() == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, g.ctl.Sources())
}

func TestGateway_SpoofedAckIgnored(t *testing.T) {
	g := newGateway(t, false, Config{})
	ws := g.dial(t)
	sid, _ := strings.CutPrefix(read(t, ws), "connecting:")
	write(t, ws, "ack:someone-else")
	write(t, ws, "ack:"+sid)
	assert.Equal(t, "connected:1", read(t, ws))
}

func TestGateway_AllocateAndRequestTurn(t *testing.T) {
	g := newGateway(t, false, Config{})
	ws := g.dial(t)
	sid := handshake(t, ws)

	g.ledger.EXPECT().AllocateUser(gomock.Any(), sid, gomock.Any()).Return(domain.ParticipantID("P1"), nil)
	write(t, ws, "allocateUser:my:secret")
	assert.Equal(t, "userAssigned:P1", read(t, ws))

	g.ledger.EXPECT().AddToLine(gomock.Any(), domain.ParticipantID("P1")).DoAndReturn(func(context.Context, domain.ParticipantID) (int, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.line = append(g.line, "P1")
		return 1, nil
	})
	write(t, ws, "requestTurn")
	assert.Equal(t, "replyTurn:1", read(t, ws))
	write(t, ws, "requestTurn")
	assert.Equal(t, "replyTurn:1", read(t, ws), "second request answers with the held turn")

	write(t, ws, "setBugName:Buggy")
	write(t, ws, "ping:ignored")
	assert.Eventually(t, func() bool {
		sess, ok := g.ctl.Orch.Registry.Get(sid)
		return ok && sess.Record().DisplayName == "Buggy"
	}, time.Second, 10*time.Millisecond)
}

func TestGateway_LiveControl(t *testing.T) {
	g := newGateway(t, false, Config{ControlSecret: "s3cret"})
	ws := g.dial(t)
	handshake(t, ws)

	write(t, ws, "gs_ready")
	write(t, ws, "registerGameServer:wrong")
	write(t, ws, "registerGameServer:s3cret")
	assert.Equal(t, "gs_connected:1", read(t, ws))
	assert.Equal(t, show.Connecting, g.ctl.Orch.Show.State(), "gs_ready before registration is ignored")

	write(t, ws, "gs_ready")
	assert.Eventually(t, func() bool { return g.ctl.Orch.Show.State() == show.Ready }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return g.ctl.Orch.Show.State() == show.Offline }, time.Second, 10*time.Millisecond)
}

func TestGateway_HeartbeatEvictsSilentPeer(t *testing.T) {
	g := newGateway(t, false, Config{PingPeriod: 300 * time.Millisecond})
	ws := g.dial(t)
	handshake(t, ws)
	assert.Equal(t, "ping:0", read(t, ws))

	// no pong: evicted on the next tick
	assert.Eventually(t, func() bool { return g.ctl.Orch.Registry.Count() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestAttemptLimiter(t *testing.T) {
	rl := NewAttemptLimiter(2, time.Hour)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestGateway_SlowDispatchKeepsEveryFrame(t *testing.T) {
	g := newGateway(t, false, Config{})
	ws := g.dial(t)
	sid := handshake(t, ws)

	gate := make(chan struct{})
	g.ledger.EXPECT().AllocateUser(gomock.Any(), sid, gomock.Any()).DoAndReturn(
		func(context.Context, domain.SessionID, string) (domain.ParticipantID, error) {
			<-gate
			return "P1", nil
		})
	write(t, ws, "allocateUser:secret")

	last := ""
	for i := range inboxSize + 40 {
		last = fmt.Sprintf("bug-%d", i)
		write(t, ws, "setBugName:"+last)
	}
	close(gate)

	assert.Equal(t, "userAssigned:P1", read(t, ws))
	assert.Eventually(t, func() bool {
		sess, ok := g.ctl.Orch.Registry.Get(sid)
		return ok && sess.Record().DisplayName == last
	}, 2*time.Second, 10*time.Millisecond)
}
