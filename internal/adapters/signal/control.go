package signal

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// keepalive arms the read deadline and extends it on every pong.
func (ctl *SignalWSController) keepalive(c *WsSignalConn) {
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})
}

func (ctl *SignalWSController) ping(c *WsSignalConn) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("ping failed")
		return err
	}
	return nil
}

func (ctl *SignalWSController) writeClose(c *WsSignalConn) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
