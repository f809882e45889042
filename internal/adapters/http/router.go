// Package http is the control surface the UI layer attaches to. The
// host process outlives any single UI; screens reconnect here and
// catch up from the state stream.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/app"
	"github.com/helpora/partnercall/internal/config"
	"github.com/helpora/partnercall/internal/core"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every UI client with a stable token used
// for rate limiting and logging.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, host *app.Host, callLog core.CallLogger, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallHostSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	log.Info().Str("module", "adapters.http").Msg("router setup")

	ctl := &CallController{Host: host, CallLog: callLog, Ctx: ctx}

	api := r.Group("/api")
	api.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	api.POST("/identity", ctl.HandleIdentity)
	api.POST("/call/setup", ctl.HandleStartSetup)
	api.POST("/call/end", ctl.HandleEndSetup)
	api.POST("/call/log", ctl.HandleEndCallAndLog)
	api.POST("/call/mute", ctl.HandleToggleMute)
	api.POST("/call/speaker", ctl.HandleToggleSpeaker)
	api.GET("/call/duration", ctl.HandleDuration)
	api.GET("/call/history", ctl.HandleHistory)
	api.GET("/call/state", ctl.HandleStateStream)
	api.GET("/call/incoming", ctl.HandleInviteStream)

	return r
}
