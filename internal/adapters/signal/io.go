package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ctx done")
			c.Close()
			ctl.writeClose(c)
			return
		case data, ok := <-c.send:
			if !ok {
				ctl.writeClose(c)
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump write error")
				c.emitError(err)
				return
			}
		case <-ticker.C:
			if err := ctl.ping(c); err != nil {
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn, lim *FrameLimiter) {
	defer func() {
		log.Debug().Str("module", "signal").Str("sid", string(c.id)).Msg("readPump closing")
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	ctl.keepalive(c)

	for ctx.Err() == nil {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("readPump read error")
				c.emitError(err)
			}
			return
		}
		if typ != websocket.TextMessage {
			log.Warn().Str("module", "signal").Str("sid", string(c.id)).Msg("drop non-text frame")
			continue
		}
		if !lim.Allow() {
			log.Warn().Str("module", "signal").Str("sid", string(c.id)).Msg("rate limited, frame dropped")
			continue
		}
		c.emitMessage(data)
	}
}
