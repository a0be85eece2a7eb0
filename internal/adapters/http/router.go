package http

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/adapters/signal"
	"github.com/dkeye/Flip/internal/app/orch"
	"github.com/dkeye/Flip/internal/config"
)

const clientTokenKey = "ct"

// ClientTokenMiddleware gives every browser a stable token kept in the signed
// session cookie. It only correlates logs; room identity comes from join.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SignalOptions(cfg *config.Config) signal.Options {
	return signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowMethods = []string{"GET", "DELETE", "OPTIONS"}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("FlipSessions", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{orch: o}
	r.GET("/ping", h.ping)
	r.GET("/healthz", h.health)

	ctl := signal.NewSignalWSController(o, SignalOptions(cfg))
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")
	api.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id/members", h.roomMembers)
	api.DELETE("/rooms/:id", h.evictRoom)
	api.DELETE("/rooms/:id/members/:sid", h.kickMember)

	log.Info().Str("module", "adapters.http").Str("sharding", string(o.Rooms.Sharding())).Msg("router setup")
	return r
}
