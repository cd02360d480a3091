// Package obs drives a recording/broadcast controller over the OBS
// websocket v5 protocol.
package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("obs not connected")
	ErrAuthRequired = errors.New("obs requires a password")
)

const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7

	rpcVersion       = 1
	subscribeOutputs = 1 << 6

	outputStopped     = "OBS_WEBSOCKET_OUTPUT_STOPPED"
	defaultFileFormat = "%CCYY-%MM-%DD %hh-%mm-%ss"
)

type Config struct {
	Address  string
	Password string
	// RecordingFolder is where OBS writes recordings as OBS sees it;
	// LocalFolder is the same directory as this process sees it.
	RecordingFolder string
	LocalFolder     string
	RequestTimeout  time.Duration
}

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type hello struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment"`
}

type response struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData"`
}

type event struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

// Client implements core.Recorder. Run keeps it connected; requests made
// while disconnected fail with ErrNotConnected.
type Client struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]chan response
	onStopped func(ctx context.Context, path string)

	writeMu   sync.Mutex
	connected atomic.Bool
}

func New(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{cfg: cfg, pending: make(map[string]chan response)}
}

// OnRecordingStopped registers fn, called with the local path of every
// finished recording.
func (c *Client) OnRecordingStopped(fn func(ctx context.Context, path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStopped = fn
}

func (c *Client) Connected() bool { return c.connected.Load() }

// Run connects and reconnects with exponential backoff until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	logger := log.With().Str("module", "obs").Str("addr", c.cfg.Address).Logger()
	stop := context.AfterFunc(ctx, c.Reset)
	defer stop()

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	for {
		conn, err := c.connect(ctx)
		if err == nil {
			b.Reset()
			logger.Info().Msg("connected")
			if ctx.Err() != nil {
				_ = conn.Close()
			}
			c.readLoop(ctx, conn)
			logger.Warn().Msg("connection lost")
		} else if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("connect")
		}
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.NextBackOff()):
		}
	}
}

// Reset drops the current connection; Run dials a fresh one.
func (c *Client) Reset() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	addr := c.cfg.Address
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := c.identify(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	return conn, nil
}

func (c *Client) identify(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.RequestTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if env.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", env.Op)
	}
	var h hello
	if err := json.Unmarshal(env.D, &h); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	ident := map[string]any{"rpcVersion": rpcVersion, "eventSubscriptions": subscribeOutputs}
	if h.Authentication != nil {
		if c.cfg.Password == "" {
			return ErrAuthRequired
		}
		ident["authentication"] = authResponse(c.cfg.Password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	if err := c.write(conn, opIdentify, ident); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	if err := conn.ReadJSON(&env); err != nil {
		return fmt.Errorf("read identified: %w", err)
	}
	if env.Op != opIdentified {
		return fmt.Errorf("expected identified, got op %d", env.Op)
	}
	return nil
}

// authResponse is base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	s := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(s + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func (c *Client) write(conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(envelope{Op: op, D: raw})
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.connected.Store(false)
		_ = conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("module", "obs").Msg("read")
			}
			return
		}
		switch env.Op {
		case opRequestResponse:
			var r response
			if err := json.Unmarshal(env.D, &r); err != nil {
				log.Warn().Err(err).Str("module", "obs").Msg("decode response")
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[r.RequestID]
			delete(c.pending, r.RequestID)
			c.mu.Unlock()
			if ok {
				ch <- r
			}
		case opEvent:
			var ev event
			if err := json.Unmarshal(env.D, &ev); err != nil {
				log.Warn().Err(err).Str("module", "obs").Msg("decode event")
				continue
			}
			c.handleEvent(ctx, ev)
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, ev event) {
	if ev.EventType != "RecordStateChanged" {
		return
	}
	var data struct {
		OutputActive bool   `json:"outputActive"`
		OutputState  string `json:"outputState"`
		OutputPath   string `json:"outputPath"`
	}
	if err := json.Unmarshal(ev.EventData, &data); err != nil {
		log.Warn().Err(err).Str("module", "obs").Msg("decode record state")
		return
	}
	if data.OutputState != outputStopped || data.OutputPath == "" {
		return
	}
	path := c.localPath(data.OutputPath)
	log.Info().Str("module", "obs").Str("path", path).Msg("recording stopped")

	c.mu.Lock()
	fn := c.onStopped
	c.mu.Unlock()
	if fn != nil {
		go fn(context.WithoutCancel(ctx), path)
	}
}

// localPath maps a path reported by OBS into LocalFolder.
func (c *Client) localPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	from := strings.TrimRight(strings.ReplaceAll(c.cfg.RecordingFolder, `\`, "/"), "/")
	if from == "" || c.cfg.LocalFolder == "" {
		return p
	}
	if rest, ok := strings.CutPrefix(p, from); ok {
		return strings.TrimRight(c.cfg.LocalFolder, "/") + rest
	}
	return p
}

// request sends one request and waits for its response.
func (c *Client) request(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil || !c.connected.Load() {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := uuid.NewString()
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := map[string]any{"requestType": requestType, "requestId": id}
	if data != nil {
		req["requestData"] = data
	}
	if err := c.write(conn, opRequest, req); err != nil {
		c.drop(id)
		return nil, fmt.Errorf("%s: %w", requestType, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case r, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if !r.RequestStatus.Result {
			return nil, fmt.Errorf("%s: code %d: %s", requestType, r.RequestStatus.Code, r.RequestStatus.Comment)
		}
		return r.ResponseData, nil
	case <-timer.C:
		c.drop(id)
		return nil, fmt.Errorf("%s: %w", requestType, context.DeadlineExceeded)
	case <-ctx.Done():
		c.drop(id)
		return nil, ctx.Err()
	}
}

func (c *Client) drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Client) setFilenameFormat(ctx context.Context, format string) error {
	_, err := c.request(ctx, "SetProfileParameter", map[string]string{
		"parameterCategory": "Output",
		"parameterName":     "FilenameFormatting",
		"parameterValue":    format,
	})
	return err
}

// StartRecording names the next recording and starts it.
func (c *Client) StartRecording(ctx context.Context, name string) error {
	if err := c.setFilenameFormat(ctx, name); err != nil {
		return err
	}
	_, err := c.request(ctx, "StartRecord", nil)
	return err
}

// StopRecording stops the recording and restores the default file naming.
func (c *Client) StopRecording(ctx context.Context) error {
	if _, err := c.request(ctx, "StopRecord", nil); err != nil {
		return err
	}
	return c.setFilenameFormat(ctx, defaultFileFormat)
}

func (c *Client) SwitchScene(ctx context.Context, scene string) error {
	_, err := c.request(ctx, "SetCurrentProgramScene", map[string]string{"sceneName": scene})
	return err
}

// Nop stands in when no controller is configured.
type Nop struct{}

func (Nop) StartRecording(context.Context, string) error { return nil }
func (Nop) StopRecording(context.Context) error          { return nil }
func (Nop) SwitchScene(context.Context, string) error    { return nil }
func (Nop) Connected() bool                              { return false }
