package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Hotseat/internal/app"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrRateLimited = errors.New("too many attempts")

// userSession resolves the caller's session from its client token,
// registering and acknowledging it on first sight.
func (h *handlers) userSession(c *gin.Context) {
	sid := domain.SessionID(c.GetString("client_token"))
	if sid == "" {
		abortError(c, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	sess := h.orch.Registry.Register(sid)
	if sess.State() == domain.StateConnecting {
		h.orch.Registry.Acknowledge(sid, string(sid))
	}
	c.Set("session", sess)
	c.Next()
}

func session(c *gin.Context) *domain.Session {
	return c.MustGet("session").(*domain.Session)
}

func (h *handlers) getUser(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).View())
}

func (h *handlers) allocateUser(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if !h.attempts.Allow(c.ClientIP()) {
		abortError(c, http.StatusTooManyRequests, ErrRateLimited)
		return
	}
	sess := session(c)
	pid, err := h.orch.Registry.AllocateIdentity(c.Request.Context(), sess.ID(), req.Secret)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"userID": pid})
	case errors.Is(err, domain.ErrSecretEmpty):
		abortError(c, http.StatusBadRequest, err)
	case errors.Is(err, app.ErrAllocationInProgress):
		abortError(c, http.StatusConflict, err)
	default:
		abortError(c, http.StatusBadGateway, err)
	}
}

func (h *handlers) recoverUser(c *gin.Context) {
	var req struct {
		ParticipantID string `json:"participantID" binding:"required"`
		Secret        string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if !h.attempts.Allow(c.ClientIP()) {
		abortError(c, http.StatusTooManyRequests, ErrRateLimited)
		return
	}
	sess := session(c)
	ok, err := h.orch.Registry.Recover(c.Request.Context(), sess.ID(), domain.ParticipantID(req.ParticipantID), req.Secret)
	switch {
	case errors.Is(err, app.ErrParticipantOnline):
		abortError(c, http.StatusConflict, err)
	case err != nil:
		log.Warn().Err(err).Str("module", "adapters.http").Str("sid", string(sess.ID())).Msg("recover session")
		abortError(c, http.StatusBadGateway, err)
	case !ok:
		abortError(c, http.StatusUnauthorized, ErrUnauthorized)
	default:
		c.JSON(http.StatusOK, sess.View())
	}
}

func (h *handlers) requestTurn(c *gin.Context) {
	turn, err := h.orch.Line.RequestTurn(c.Request.Context(), session(c))
	switch {
	case err == nil, errors.Is(err, app.ErrAlreadyQueued):
		c.JSON(http.StatusOK, gin.H{"turn": turn})
	case errors.Is(err, app.ErrNotAllocated):
		abortError(c, http.StatusForbidden, err)
	case errors.Is(err, app.ErrRequestInFlight):
		abortError(c, http.StatusConflict, err)
	default:
		abortError(c, http.StatusBadGateway, err)
	}
}

func (h *handlers) setBug(c *gin.Context) {
	var req struct {
		ADN  string `json:"adn"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	h.respondRecord(c, session(c).SetBug(req.ADN, req.Name))
}

func (h *handlers) setIntro(c *gin.Context) {
	var req struct {
		Intro string `json:"intro"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	h.respondRecord(c, session(c).SetIntroWords(req.Intro))
}

func (h *handlers) setLast(c *gin.Context) {
	var req struct {
		Last string `json:"last"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	h.respondRecord(c, session(c).SetLastWords(req.Last))
}

func (h *handlers) respondRecord(c *gin.Context, err error) {
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, session(c).Record())
}

// syncState is what a participant polls while waiting: once it is called up
// it gets the secret to open its live-control connection with.
func (h *handlers) syncState(c *gin.Context) {
	sess := session(c)
	secret := sess.SecretKey()
	canConnect := sess.State() == domain.StateReadyToPlay && secret != ""
	resp := gin.H{"canConnect": canConnect, "user": sess.View()}
	if canConnect {
		resp["secretKey"] = secret
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) linkAccount(c *gin.Context) {
	var req struct {
		AccountID string `json:"accountID" binding:"required"`
		Secret    string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	sess := session(c)
	switch err := h.orch.Registry.LinkAccount(c.Request.Context(), sess.ID(), req.AccountID, req.Secret); {
	case err == nil:
		c.JSON(http.StatusOK, sess.View())
	case errors.Is(err, app.ErrNotAllocated):
		abortError(c, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrAccountLinked):
		abortError(c, http.StatusConflict, err)
	default:
		abortError(c, http.StatusBadGateway, err)
	}
}
