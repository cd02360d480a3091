package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Hotseat/internal/adapters/signal"
	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/app/orch"
	"github.com/dkeye/Hotseat/internal/app/show"
	"github.com/dkeye/Hotseat/internal/config"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/core/mock"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type harness struct {
	srv    *httptest.Server
	orch   *orch.Orchestrator
	ledger *mock.MockLedger
	creds  *mock.MockCredentialStore
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	h := &harness{ledger: mock.NewMockLedger(ctrl), creds: mock.NewMockCredentialStore(ctrl)}
	rec := mock.NewMockRecorder(ctrl)
	rec.EXPECT().Connected().Return(false).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	reg := app.NewRegistry(h.ledger, h.creds)
	line := app.NewWaitlist(h.ledger, reg)
	machine := show.NewMachine(show.DefaultConfig(), show.Deps{Registry: reg, Line: line, Ledger: h.ledger, Recorder: rec})
	h.orch = orch.New(ctx, reg, line, machine, app.SimplePolicy{}, rec)

	cfg := &config.Config{Mode: "test", Secret: "cookie-secret"}
	cfg.Control.Secret = "s3cret"
	r := SetupRouter(ctx, cfg, h.orch, signal.NewSignalWSController(h.orch, signal.Config{}))
	h.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		h.srv.Close()
	})
	return h
}

// client returns an HTTP client with its own cookie jar, i.e. one browser.
func (h *harness) client(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (h *harness) do(t *testing.T, c *http.Client, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestServer_RequiresControlCookie(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	code, _ := h.do(t, c, http.MethodGet, "/server/status", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = h.do(t, c, http.MethodPost, "/server/register", map[string]string{"secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, show.Offline, h.orch.Show.State())
}

func TestServer_RegisterReadyDisconnect(t *testing.T) {
	h := newHarness(t)
	control := h.client(t)

	code, body := h.do(t, control, http.MethodPost, "/server/register", map[string]string{"secret": "s3cret"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CONNECTING", body["gameState"])

	code, body = h.do(t, control, http.MethodGet, "/server/events", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"gs_connected:1"}, body["events"])

	// only while OFFLINE
	code, _ = h.do(t, h.client(t), http.MethodPost, "/server/register", map[string]string{"secret": "s3cret"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = h.do(t, control, http.MethodPost, "/server/ready", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, body = h.do(t, control, http.MethodGet, "/server/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "READY", body["gameState"])

	code, _ = h.do(t, control, http.MethodPost, "/server/player/game-over", map[string]string{"peer": "7", "cause": "x"})
	assert.Equal(t, http.StatusConflict, code, "no active participant")
	code, _ = h.do(t, control, http.MethodPost, "/server/player/score", map[string]any{"peer": "7", "score": 3})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = h.do(t, control, http.MethodPost, "/server/disconnect", nil)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, show.Offline, h.orch.Show.State())

	code, _ = h.do(t, control, http.MethodGet, "/server/status", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUser_AllocateAndRequestTurn(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	h.ledger.EXPECT().AllocateUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ParticipantID("P9"), nil)
	h.creds.EXPECT().SaveCredential(gomock.Any(), gomock.Any()).Return(nil)
	code, body := h.do(t, c, http.MethodPost, "/user/request", map[string]string{"secret": "pw"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "P9", body["userID"])

	code, body = h.do(t, c, http.MethodPost, "/user/bug", map[string]string{"adn": "acgt", "name": "Buggy"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Buggy", body["name"])

	code, _ = h.do(t, c, http.MethodPost, "/user/bug", map[string]string{"name": " "})
	assert.Equal(t, http.StatusBadRequest, code)

	h.ledger.EXPECT().AddToLine(gomock.Any(), domain.ParticipantID("P9")).Return(4, nil)
	h.ledger.EXPECT().Line(gomock.Any()).Return([]domain.ParticipantID{"P9"}, nil)
	h.ledger.EXPECT().UserTurn(gomock.Any(), domain.ParticipantID("P9")).Return(4, nil)
	code, body = h.do(t, c, http.MethodPost, "/user/request-turn", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["turn"])

	code, body = h.do(t, c, http.MethodGet, "/user/sync-state", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["canConnect"])
	assert.NotContains(t, body, "secretKey")
	user := body["user"].(map[string]any)
	assert.Equal(t, "QUEUED", user["state"])

	code, _ = h.do(t, h.client(t), http.MethodPost, "/user/request-turn", nil)
	assert.Equal(t, http.StatusForbidden, code, "another browser has no identity")
}

func TestUser_RecoverWrongSecret(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	key, err := domain.DeriveUnlockKey("right")
	require.NoError(t, err)
	h.creds.EXPECT().GetCredential(gomock.Any(), domain.ParticipantID("P1")).Return(core.Credential{ParticipantID: "P1", UnlockKey: key}, nil)

	code, _ := h.do(t, c, http.MethodPost, "/user/recover", map[string]string{"participantID": "P1", "secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := h.do(t, c, http.MethodGet, "/user", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, "P1", body["userID"])
}

func TestUser_LinkAccountRequiresIdentity(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(t, h.client(t), http.MethodPost, "/user/account", map[string]string{"accountID": "0xabc"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAPIStatus(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(t, h.client(t), http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["serving"])
	assert.Equal(t, "OFFLINE", body["show"].(map[string]any)["gameState"])
}

func TestSessionCookieAttributes(t *testing.T) {
	h := newHarness(t)

	for _, secure := range []bool{false, true} {
		cfg := &config.Config{Mode: "test", Secret: "cookie-secret", SecureCookies: secure}
		cfg.Control.Secret = "s3cret"
		r := SetupRouter(context.Background(), cfg, h.orch, signal.NewSignalWSController(h.orch, signal.Config{}))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/server/register", strings.NewReader(`{"secret":"s3cret"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		cookies := map[string]*http.Cookie{}
		for _, c := range w.Result().Cookies() {
			cookies[c.Name] = c
		}
		for _, name := range []string{"HotseatSessions", "ct"} {
			c, ok := cookies[name]
			require.True(t, ok, name)
			assert.Equal(t, secure, c.Secure, name)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite, name)
			assert.True(t, c.HttpOnly, name)
			assert.Equal(t, "/", c.Path, name)
		}

		h.orch.Show.Detach()
	}
}
