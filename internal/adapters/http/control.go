package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"

	"github.com/dkeye/Hotseat/internal/app/show"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	controlKey  = "control"
	outboxLimit = 64
)

// pollConn is the live-control channel of a process that talks HTTP: frames
// queue up until it collects them from /server/events.
type pollConn struct {
	mu     sync.Mutex
	queue  []string
	closed bool
}

func (p *pollConn) TrySend(f core.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.ErrConnClosed
	}
	if len(p.queue) >= outboxLimit {
		return core.ErrBackpressure
	}
	p.queue = append(p.queue, string(f))
	return nil
}

func (p *pollConn) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.queue = nil
}

func (p *pollConn) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue
	p.queue = nil
	if out == nil {
		out = []string{}
	}
	return out
}

func (h *handlers) currentControl() *pollConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.control
}

// requireControl admits only the caller whose cookie carries the token of
// the attached HTTP live-control channel.
func (h *handlers) requireControl(c *gin.Context) {
	token, _ := sessions.Default(c).Get(controlKey).(string)
	h.mu.Lock()
	conn, want := h.control, h.controlToken
	h.mu.Unlock()
	if token == "" || conn == nil || subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 || !h.orch.Show.IsControl(conn) {
		abortError(c, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	c.Next()
}

func (h *handlers) registerControl(c *gin.Context) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		log.Warn().Str("module", "adapters.http").Str("addr", c.ClientIP()).Msg("live control registration refused")
		abortError(c, http.StatusUnauthorized, ErrUnauthorized)
		return
	}

	conn := &pollConn{}
	if err := h.orch.Show.Attach(conn); err != nil {
		abortError(c, http.StatusConflict, err)
		return
	}
	token := uuid.NewString()
	h.mu.Lock()
	h.control, h.controlToken = conn, token
	h.mu.Unlock()

	sess := sessions.Default(c)
	sess.Set(controlKey, token)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save control session")
	}
	log.Info().Str("module", "adapters.http").Str("addr", c.ClientIP()).Msg("live control registered over http")
	c.JSON(http.StatusOK, h.orch.Show.Status())
}

func (h *handlers) controlStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Show.Status())
}

func (h *handlers) controlEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.currentControl().drain()})
}

func (h *handlers) controlReady(c *gin.Context) {
	if !h.orch.Show.MarkReady() {
		abortError(c, http.StatusConflict, show.ErrNotReady)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) cardGenerated(c *gin.Context) {
	var req struct {
		Filename string `json:"filename" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if !h.orch.Show.CardGenerated(req.Filename) {
		abortError(c, http.StatusConflict, show.ErrNotActive)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) playerConnected(c *gin.Context) {
	var req struct {
		Success bool   `json:"success"`
		Secret  string `json:"secret" binding:"required"`
		Peer    string `json:"peer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if !req.Success {
		if !h.orch.Show.FailConnection(req.Secret) {
			abortError(c, http.StatusNotFound, show.ErrUnknownSecret)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	switch err := h.orch.Show.RegisterPlayerConnection(req.Secret, domain.PeerHandle(req.Peer)); {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, show.ErrUnknownSecret):
		abortError(c, http.StatusNotFound, err)
	default:
		abortError(c, http.StatusConflict, err)
	}
}

func (h *handlers) playerDisconnected(c *gin.Context) {
	var req struct {
		Peer string `json:"peer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	h.orch.Show.PilotDisconnected(h.ctx, domain.PeerHandle(req.Peer))
	c.Status(http.StatusNoContent)
}

func (h *handlers) pilotReady(c *gin.Context) {
	if !h.orch.Show.ConfirmPilot() {
		abortError(c, http.StatusConflict, show.ErrNotActive)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) gameOver(c *gin.Context) {
	var req struct {
		Peer  string `json:"peer" binding:"required"`
		Cause string `json:"cause"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	peer := domain.PeerHandle(req.Peer)
	if h.orch.Show.Active() != peer {
		log.Error().Str("module", "adapters.http").Str("peer", req.Peer).Msg("game over for inactive peer")
		abortError(c, http.StatusConflict, show.ErrNotActive)
		return
	}
	// The round waits on the card and video, which arrive on later requests.
	go func() {
		_ = h.orch.Show.GameOver(context.WithoutCancel(h.ctx), peer, req.Cause)
	}()
	c.Status(http.StatusAccepted)
}

func (h *handlers) playerScore(c *gin.Context) {
	var req struct {
		Peer  string `json:"peer" binding:"required"`
		Score int    `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	h.respondActive(c, h.orch.Show.AddScore(c.Request.Context(), domain.PeerHandle(req.Peer), req.Score))
}

func (h *handlers) playerReward(c *gin.Context) {
	var req struct {
		Peer     string `json:"peer" binding:"required"`
		RewardID string `json:"rewardID" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	h.respondActive(c, h.orch.Show.RewardPlayer(c.Request.Context(), domain.PeerHandle(req.Peer), req.RewardID))
}

func (h *handlers) respondActive(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, show.ErrNotActive), errors.Is(err, show.ErrParticipantGone):
		abortError(c, http.StatusConflict, err)
	default:
		abortError(c, http.StatusBadGateway, err)
	}
}

func (h *handlers) disconnectControl(c *gin.Context) {
	h.mu.Lock()
	conn := h.control
	h.control, h.controlToken = nil, ""
	h.mu.Unlock()
	h.orch.Show.Detach()
	if conn != nil {
		conn.Close()
	}

	sess := sessions.Default(c)
	sess.Delete(controlKey)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save control session")
	}
	log.Info().Str("module", "adapters.http").Msg("live control disconnected over http")
	c.Status(http.StatusNoContent)
}
