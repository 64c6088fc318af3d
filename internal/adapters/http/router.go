package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Webinar/internal/adapters/signal"
	"github.com/dkeye/Webinar/internal/app"
	"github.com/dkeye/Webinar/internal/app/orch"
	"github.com/dkeye/Webinar/internal/config"
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

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

type Handlers struct {
	Signal   *signal.SignalWSController
	Sessions *app.SessionManager[*orch.Orchestrator]
	Rooms    *app.RoomManager
}

func SetupRouter(ctx context.Context, cfg *config.Config, h Handlers) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("WebinarSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": h.Rooms.List()})
	})
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": h.Sessions.List()})
	})

	me := api.Group("/sessions/me")
	me.GET("", h.getMe)
	me.POST("/intents", h.postIntent)
	me.GET("/participants/:pid/streams", h.getStreams)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		h.Signal.HandleSignal(ctx, c)
	})

	return r
}

func (h Handlers) session(c *gin.Context) (*orch.Orchestrator, bool) {
	o, ok := h.Sessions.Get(core.SessionID(c.GetString("client_token")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_joined"})
	}
	return o, ok
}

func (h Handlers) getMe(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participants": o.Producers.Participants(),
		"state":        o.Snapshot(),
	})
}

func (h Handlers) postIntent(c *gin.Context) {
	var body struct {
		Intent string `json:"intent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	intent, err := domain.ParseIntent(body.Intent)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_intent"})
		return
	}
	sid := core.SessionID(c.GetString("client_token"))
	if intent == domain.IntentLeave {
		if err := h.Sessions.Leave(c.Request.Context(), sid); errors.Is(err, app.ErrNoSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_joined"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"left": true})
		return
	}
	o, ok := h.session(c)
	if !ok {
		return
	}
	if err := o.Dispatch(c.Request.Context(), intent); err != nil {
		c.JSON(statusFor(err), gin.H{"error": domain.Classify(err), "state": o.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": o.Snapshot()})
}

func (h Handlers) getStreams(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	pid := domain.ParticipantID(c.Param("pid"))
	resp := gin.H{"primary": o.Producers.ResolvePrimary(pid)}
	if secondary, ok := o.Producers.ResolveSecondary(pid); ok {
		resp["secondary"] = secondary
	}
	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrRecordingBusy):
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}
