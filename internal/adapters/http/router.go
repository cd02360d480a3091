package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/dkeye/Hotseat/internal/adapters/signal"
	"github.com/dkeye/Hotseat/internal/app/orch"
	"github.com/dkeye/Hotseat/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a browser to one participant session via the "ct" cookie.
func ClientTokenMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie("ct", token, 3600*24*7, "/", "", secure, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// handlers holds what the HTTP surfaces share: the orchestrator and the
// live-control channel registered over HTTP, if any.
type handlers struct {
	ctx      context.Context
	orch     *orch.Orchestrator
	secret   string
	attempts *signal.AttemptLimiter

	mu           sync.Mutex
	control      *pollConn
	controlToken string
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ws *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("HotseatSessions", store))
	r.Use(ClientTokenMiddleware(cfg.SecureCookies))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{
		ctx:      ctx,
		orch:     o,
		secret:   cfg.Control.Secret,
		attempts: signal.NewAttemptLimiter(cfg.Gateway.AttemptLimit, cfg.Gateway.AttemptWindow),
	}

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Status())
	})
	api.GET("/ws", func(c *gin.Context) {
		ws.HandleSignal(ctx, c)
	})

	srv := r.Group("/server")
	srv.POST("/register", h.registerControl)
	ctl := srv.Group("", h.requireControl)
	ctl.GET("/status", h.controlStatus)
	ctl.GET("/events", h.controlEvents)
	ctl.POST("/ready", h.controlReady)
	ctl.POST("/card", h.cardGenerated)
	ctl.POST("/player/connected", h.playerConnected)
	ctl.POST("/player/disconnected", h.playerDisconnected)
	ctl.POST("/player/ready", h.pilotReady)
	ctl.POST("/player/game-over", h.gameOver)
	ctl.POST("/player/score", h.playerScore)
	ctl.POST("/player/reward", h.playerReward)
	ctl.POST("/disconnect", h.disconnectControl)

	user := r.Group("/user", h.userSession)
	user.GET("", h.getUser)
	user.POST("/request", h.allocateUser)
	user.POST("/recover", h.recoverUser)
	user.POST("/request-turn", h.requestTurn)
	user.POST("/bug", h.setBug)
	user.POST("/bug/intro", h.setIntro)
	user.POST("/bug/last", h.setLast)
	user.GET("/sync-state", h.syncState)
	user.POST("/account", h.linkAccount)

	return r
}

func abortError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
