package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/Hotseat/internal/core"
	"github.com/dkeye/Hotseat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Gateway talks JSON over HTTP to a ledger gateway service. Reads are
// retried; writes are sent once because they are not idempotent.
type Gateway struct {
	base   string
	token  string
	client *http.Client
	tries  uint

	events chan core.LedgerEvent
}

type GatewayOption func(*Gateway)

func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.client = c }
}

func WithReadTries(n uint) GatewayOption {
	return func(g *Gateway) { g.tries = n }
}

func NewGateway(baseURL, token string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
		tries:  3,
		events: make(chan core.LedgerEvent, 64),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger gateway: status %d: %s", e.Code, e.Body)
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, core.ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// get retries transport failures and 5xx answers.
func (g *Gateway) get(ctx context.Context, path string, out any) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := g.do(ctx, http.MethodGet, path, nil, out)
		var se *statusError
		if errors.Is(err, core.ErrNotFound) || (errors.As(err, &se) && se.Code < 500) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(g.tries),
	)
	return err
}

func (g *Gateway) AllocateUser(ctx context.Context, sid domain.SessionID, unlockKey string) (domain.ParticipantID, error) {
	var out struct {
		UserID string `json:"userID"`
	}
	err := g.do(ctx, http.MethodPost, "/allocate", map[string]string{"sessionID": string(sid), "unlockKey": unlockKey}, &out)
	return domain.ParticipantID(out.UserID), err
}

func (g *Gateway) AddToLine(ctx context.Context, pid domain.ParticipantID) (int, error) {
	var out struct {
		Turn int `json:"turn"`
	}
	err := g.do(ctx, http.MethodPost, "/line/add", map[string]string{"userID": string(pid)}, &out)
	return out.Turn, err
}

func (g *Gateway) Peek(ctx context.Context) (domain.ParticipantID, error) {
	var out struct {
		UserID string `json:"userID"`
	}
	err := g.do(ctx, http.MethodPost, "/line/peek", struct{}{}, &out)
	return domain.ParticipantID(out.UserID), err
}

func (g *Gateway) Line(ctx context.Context) ([]domain.ParticipantID, error) {
	var out struct {
		Line []domain.ParticipantID `json:"line"`
	}
	if err := g.get(ctx, "/line", &out); err != nil {
		return nil, err
	}
	return out.Line, nil
}

func (g *Gateway) UserTurn(ctx context.Context, pid domain.ParticipantID) (int, error) {
	var out struct {
		Turn int `json:"turn"`
	}
	if err := g.get(ctx, "/users/"+url.PathEscape(string(pid)), &out); err != nil {
		return 0, err
	}
	return out.Turn, nil
}

func (g *Gateway) RewardGameToken(ctx context.Context, pid domain.ParticipantID, uri string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := g.do(ctx, http.MethodPost, "/reward/token", map[string]string{"userID": string(pid), "uri": uri}, &out)
	return out.Token, err
}

func (g *Gateway) RewardPoints(ctx context.Context, pid domain.ParticipantID, points int) (int, error) {
	var out struct {
		Total int `json:"total"`
	}
	err := g.do(ctx, http.MethodPost, "/reward/points", map[string]any{"userID": string(pid), "points": points}, &out)
	return out.Total, err
}

func (g *Gateway) SetUserOwnership(ctx context.Context, pid domain.ParticipantID, account, secret string) error {
	return g.do(ctx, http.MethodPost, "/ownership", map[string]string{"userID": string(pid), "account": account, "secret": secret}, nil)
}

func (g *Gateway) Events() <-chan core.LedgerEvent { return g.events }

type wireEvent struct {
	Kind      core.LedgerEventKind `json:"kind"`
	UserID    string               `json:"userID"`
	SessionID string               `json:"sessionID"`
	Value     string               `json:"value"`
}

// Run polls the gateway's event feed every period and republishes what it
// finds on Events until ctx ends.
func (g *Gateway) Run(ctx context.Context, period time.Duration) error {
	logger := log.With().Str("module", "ledger.gateway").Logger()
	t := time.NewTicker(period)
	defer t.Stop()
	cursor := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		var out struct {
			Events []wireEvent `json:"events"`
			Cursor int         `json:"cursor"`
		}
		if err := g.get(ctx, "/events?after="+strconv.Itoa(cursor), &out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("poll events")
			continue
		}
		cursor = out.Cursor
		for _, ev := range out.Events {
			select {
			case g.events <- core.LedgerEvent{
				Kind:        ev.Kind,
				Participant: domain.ParticipantID(ev.UserID),
				Session:     domain.SessionID(ev.SessionID),
				Value:       ev.Value,
			}:
			default:
				logger.Warn().Str("kind", string(ev.Kind)).Msg("event buffer full, dropping")
			}
		}
	}
}
