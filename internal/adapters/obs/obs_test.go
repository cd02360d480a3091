package obs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOBS speaks enough of the v5 protocol to drive the client.
type fakeOBS struct {
	password string

	mu       sync.Mutex
	requests []string
	params   []string
}

func (f *fakeOBS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	send := func(op int, d any) {
		raw, _ := json.Marshal(d)
		_ = conn.WriteJSON(envelope{Op: op, D: raw})
	}
	send(opHello, map[string]any{
		"rpcVersion":     1,
		"authentication": map[string]string{"challenge": "ch", "salt": "sa"},
	})

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		return
	}
	var ident struct {
		Authentication string `json:"authentication"`
	}
	_ = json.Unmarshal(env.D, &ident)
	if ident.Authentication != authResponse(f.password, "sa", "ch") {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(4009, "auth"), time.Now().Add(time.Second))
		return
	}
	send(opIdentified, map[string]int{"negotiatedRpcVersion": 1})

	for {
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		var req struct {
			RequestType string            `json:"requestType"`
			RequestID   string            `json:"requestId"`
			RequestData map[string]string `json:"requestData"`
		}
		_ = json.Unmarshal(env.D, &req)
		f.mu.Lock()
		f.requests = append(f.requests, req.RequestType)
		if v, ok := req.RequestData["parameterValue"]; ok {
			f.params = append(f.params, v)
		}
		f.mu.Unlock()

		ok := req.RequestType != "SetCurrentProgramScene" || req.RequestData["sceneName"] != "missing"
		send(opRequestResponse, map[string]any{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": map[string]any{"result": ok, "code": 100},
		})
		if req.RequestType == "StopRecord" {
			send(opEvent, map[string]any{
				"eventType": "RecordStateChanged",
				"eventData": map[string]any{
					"outputActive": false,
					"outputState":  outputStopped,
					"outputPath":   `C:\obs\rec\Show_1.mkv`,
				},
			})
		}
	}
}

func (f *fakeOBS) seen() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...), append([]string(nil), f.params...)
}

func startClient(t *testing.T, password string) (*Client, *fakeOBS) {
	fake := &fakeOBS{password: "pw"}
	srv := httptest.NewServer(fake)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	c := New(Config{
		Address:         strings.TrimPrefix(srv.URL, "http://"),
		Password:        password,
		RecordingFolder: `C:\obs\rec`,
		LocalFolder:     "/mnt/rec",
	})
	go func() { _ = c.Run(ctx) }()
	return c, fake
}

func TestClient_RecordingCycle(t *testing.T) {
	c, fake := startClient(t, "pw")
	stopped := make(chan string, 1)
	c.OnRecordingStopped(func(_ context.Context, path string) { stopped <- path })
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, c.StartRecording(ctx, "Hotseat_1"))
	require.NoError(t, c.SwitchScene(ctx, "live"))
	require.NoError(t, c.StopRecording(ctx))

	select {
	case p := <-stopped:
		assert.Equal(t, "/mnt/rec/Show_1.mkv", p)
	case <-time.After(2 * time.Second):
		t.Fatal("no recording stopped callback")
	}

	reqs, params := fake.seen()
	assert.Equal(t, []string{
		"SetProfileParameter", "StartRecord", "SetCurrentProgramScene", "StopRecord", "SetProfileParameter",
	}, reqs)
	assert.Equal(t, []string{"Hotseat_1", defaultFileFormat}, params)

	assert.Error(t, c.SwitchScene(ctx, "missing"))
}

func TestClient_WrongPassword(t *testing.T) {
	c, _ := startClient(t, "nope")
	time.Sleep(100 * time.Millisecond)
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.StartRecording(context.Background(), "x"), ErrNotConnected)
}

func TestLocalPath(t *testing.T) {
	c := New(Config{RecordingFolder: "/obs/", LocalFolder: "/data"})
	assert.Equal(t, "/data/a.mkv", c.localPath("/obs/a.mkv"))
	assert.Equal(t, "/else/a.mkv", c.localPath("/else/a.mkv"))
	assert.Equal(t, "/x/a.mkv", New(Config{}).localPath("/x/a.mkv"))
}

func TestNop(t *testing.T) {
	var n Nop
	assert.False(t, n.Connected())
	assert.NoError(t, n.StopRecording(context.Background()))
}
