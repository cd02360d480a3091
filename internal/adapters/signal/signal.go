package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Hotseat/internal/app/orch"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AckGrace      time.Duration
	PingPeriod    time.Duration
	SendBuffer    int
	ReadLimit     int64
	ControlSecret string
	AttemptLimit  int
	AttemptWindow time.Duration
}

// SignalWSController is the connection gateway: one websocket per session,
// routed to the registry, the line and the show.
type SignalWSController struct {
	Orch *orch.Orchestrator

	cfg      Config
	attempts *AttemptLimiter

	mu      sync.Mutex
	sources map[string]int
}

func NewSignalWSController(o *orch.Orchestrator, cfg Config) *SignalWSController {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	return &SignalWSController{
		Orch:     o,
		cfg:      cfg,
		attempts: NewAttemptLimiter(cfg.AttemptLimit, cfg.AttemptWindow),
		sources:  make(map[string]int),
	}
}

type WsSignalConn struct {
	conn  *websocket.Conn
	send  chan core.Frame
	inbox chan core.Message
	sid   domain.SessionID
	addr  string
	alive atomic.Bool

	mu       sync.RWMutex
	closed   bool
	detached sync.Once
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// inboxSize bounds the frames parsed ahead of dispatch per connection.
const inboxSize = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	addr := c.ClientIP()
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	conn := &WsSignalConn{
		conn:  ws,
		send:  make(chan core.Frame, ctl.cfg.SendBuffer),
		inbox: make(chan core.Message, inboxSize),
		sid:   domain.SessionID(uuid.NewString()),
		addr:  addr,
	}
	conn.alive.Store(true)
	ctl.attach(ctx, conn)
}

// attach admits conn under the source-address policy, registers its session
// and starts its pumps. A refused connection is closed without a session.
func (ctl *SignalWSController) attach(ctx context.Context, conn *WsSignalConn) {
	logger := log.With().Str("module", "signal").Str("sid", string(conn.sid)).Str("addr", conn.addr).Logger()

	ctl.mu.Lock()
	if ctl.Orch.Policy != nil && !ctl.Orch.Policy.AllowSource(conn.addr, ctl.sources[conn.addr]) {
		ctl.mu.Unlock()
		logger.Warn().Msg("source already connected, refusing")
		conn.Close()
		return
	}
	ctl.sources[conn.addr]++
	ctl.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Register(conn.sid)
	ctl.Orch.Registry.BindSignal(conn.sid, conn, cancel)
	logger.Info().Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
	go ctl.dispatchLoop(ctx, conn)
	go ctl.heartbeat(ctx, conn)

	ctl.send(conn, core.NewMessage("connecting", string(conn.sid)))
	if ctl.cfg.AckGrace > 0 {
		time.AfterFunc(ctl.cfg.AckGrace, func() {
			if ctl.Orch.Registry.IsConnected(conn.sid) || ctl.Orch.Show.IsControl(conn) {
				return
			}
			logger.Warn().Msg("ack grace expired")
			ctl.detach(conn)
		})
	}
}

// detach tears conn down exactly once: transport, address slot, session and
// the live-control binding when conn held it.
func (ctl *SignalWSController) detach(conn *WsSignalConn) {
	conn.detached.Do(func() {
		isControl := ctl.Orch.Show.IsControl(conn)
		conn.Close()

		ctl.mu.Lock()
		if ctl.sources[conn.addr] <= 1 {
			delete(ctl.sources, conn.addr)
		} else {
			ctl.sources[conn.addr]--
		}
		ctl.mu.Unlock()

		if isControl {
			ctl.Orch.Show.Detach()
		}
		ctl.Orch.OnDisconnect(conn.sid)
		log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Msg("connection closed")
	})
}

func (ctl *SignalWSController) send(conn *WsSignalConn, msg core.Message) {
	err := core.Send(conn, msg)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrBackpressure):
		log.Warn().Str("module", "signal").Str("sid", string(conn.sid)).Str("event", msg.Event).Msg("send buffer full")
		ctl.Orch.OnBackpressure(conn.sid)
	default:
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(conn.sid)).Msg("send on closed connection")
	}
}

// Sources reports how many live connections each source address holds.
func (ctl *SignalWSController) Sources() map[string]int {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	out := make(map[string]int, len(ctl.sources))
	for k, v := range ctl.sources {
		out[k] = v
	}
	return out
}
