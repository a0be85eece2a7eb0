package signal

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Flip/internal/app/orch"
	"github.com/dkeye/Flip/internal/core"
)

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 64,
		RateLimit:  20,
		RateBurst:  40,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	ctl := &SignalWSController{Orch: o, opts: opts}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(ctl.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// HandleSignal upgrades the request and runs the connection until either
// side closes it or ctx is done.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	room := roomFromRequest(c)
	if _, err := ctl.Orch.Rooms.KeyFor(room); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := NewWsSignalConn(sid, ws, ctl.opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)

	conn.OnMessage(func(f core.Frame) { ctl.Orch.OnFrame(sid, f) })
	conn.OnError(func(err error) {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("transport error")
	})
	conn.OnClose(func() {
		cancel()
		ctl.Orch.OnDisconnect(sid)
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("connection closed")
	})

	if err := ctl.Orch.Connect(room, conn, cancel); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("connect")
		cancel()
		_ = ws.Close()
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client_token", c.GetString("client_token")).Str("room", room).Msg("new WS connection")

	limiter := NewFrameLimiter(ctl.opts.RateLimit, ctl.opts.RateBurst)
	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, conn) })
	wg.Go(func() { ctl.readPump(ctx, conn, limiter) })
	go func() {
		if r := wg.WaitAndRecover(); r != nil {
			log.Error().Str("module", "signal").Str("sid", string(sid)).Str("panic", r.String()).Msg("connection pump panicked")
		}
		conn.finish()
	}()
}
