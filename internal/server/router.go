package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"techrepair-server/internal/auth"
	"techrepair-server/internal/handler"
	"techrepair-server/internal/middleware"
	"techrepair-server/internal/relay"
	"techrepair-server/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Log         zerolog.Logger
	SessionTTL  time.Duration
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	relayServer := relay.NewServer(relay.Deps{Store: deps.Store, Log: deps.Log})
	r.GET("/ws", relayServer.Serve)

	connHandler := &handler.ConnectionHandler{
		Store: deps.Store,
		Relay: relayServer,
		Log:   deps.Log,
		TTL:   deps.SessionTTL,
	}
	chatHandler := &handler.ChatHandler{Store: deps.Store, Relay: relayServer, Log: deps.Log}

	generateLimiter := middleware.NewRateLimiter(30, time.Minute)
	r.POST("/connections/generate", middleware.RateLimit(generateLimiter), connHandler.Generate)
	r.GET("/connections/validate/:accessCode", connHandler.Validate)
	r.GET("/connections/history", connHandler.History)
	// The client grants permissions and ends the session; neither holds a token.
	r.PUT("/connections/permissions/:accessCode", connHandler.Permissions)
	r.PUT("/connections/end/:accessCode", connHandler.End)

	r.GET("/chat/:accessCode/messages", chatHandler.Messages)
	r.POST("/chat/:accessCode/messages", chatHandler.Send)

	protected := r.Group("/connections")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.POST("", connHandler.Create)
	protected.GET("", connHandler.List)
	protected.GET("/:id", connHandler.GetByID)
	protected.PUT("/:id", connHandler.Update)
	protected.DELETE("/:id", connHandler.Delete)
	protected.POST("/connect/:accessCode", connHandler.Connect)

	return r
}
