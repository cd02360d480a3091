package signal

import (
	"context"
	"time"

	"github.com/dkeye/Hotseat/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump parses frames and hands them to the session's dispatch loop in
// arrival order, never dropping one. Heartbeat replies are consumed here.
func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump closing")
		close(c.inbox)
		ctl.detach(c)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump read error")
			}
			return
		}
		msg, err := core.ParseMessage(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("malformed frame")
			continue
		}
		if msg.Event == "pong" {
			c.alive.Store(true)
			continue
		}
		// A full inbox stalls reading; the peer's writes back up instead of
		// frames being lost.
		select {
		case c.inbox <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (ctl *SignalWSController) dispatchLoop(ctx context.Context, c *WsSignalConn) {
	for msg := range c.inbox {
		ctl.handleSignal(ctx, c, msg)
	}
}

// heartbeat pings every period; a connection that did not answer the
// previous ping is evicted.
func (ctl *SignalWSController) heartbeat(ctx context.Context, c *WsSignalConn) {
	if ctl.cfg.PingPeriod <= 0 {
		return
	}
	t := time.NewTicker(ctl.cfg.PingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.alive.Swap(false) {
				log.Warn().Str("module", "signal").Str("sid", string(c.sid)).Msg("missed heartbeat")
				ctl.detach(c)
				return
			}
			ctl.send(c, core.NewMessage("ping", "0"))
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, msg core.Message) {
	if ctl.Orch.Show.IsControl(c) && ctl.isControlEvent(msg) {
		ctl.handleControl(ctx, msg)
		return
	}

	switch msg.Event {
	case "ack":
		ctl.handleAck(c, msg.Payload)
	case "allocateUser":
		ctl.handleAllocate(ctx, c, msg.Payload)
	case "requestTurn":
		ctl.handleRequestTurn(ctx, c)
	case "recoverSession":
		ctl.handleRecover(ctx, c, msg.Payload)
	case "registerGameServer":
		ctl.handleRegisterControl(c, msg.Payload)
	case "setADN", "setBugName", "setIntroWords", "setLastWords":
		ctl.handleRecordField(c, msg)
	default:
		log.Warn().Str("module", "signal").Str("sid", string(c.sid)).Str("event", msg.Event).Msg("unknown signal")
	}
}
