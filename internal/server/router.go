// Package server provides the studio's HTTP surface: the generation API,
// history browsing, diagnostics, and the job event stream.
package server

import (
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"tts-studio/internal/config"
	"tts-studio/internal/core"
	"tts-studio/internal/system"
	"tts-studio/internal/text"
)

const corsMaxAge = 12 * time.Hour

// Server bundles the dependencies behind the HTTP handlers.
type Server struct {
	cfg        *config.Config
	log        *logger.Logger
	queue      core.JobQueue
	history    core.HistoryStore
	engine     core.SpeechEngine
	reporter   *system.Reporter
	events     *nats.Conn
	normalizer *text.Normalizer
	upgrader   websocket.Upgrader
}

// New creates a server. The events connection may be nil, in which case the
// websocket stream reports unavailable.
func New(
	cfg *config.Config,
	log *logger.Logger,
	queue core.JobQueue,
	history core.HistoryStore,
	engine core.SpeechEngine,
	reporter *system.Reporter,
	events *nats.Conn,
) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		queue:      queue,
		history:    history,
		engine:     engine,
		reporter:   reporter,
		events:     events,
		normalizer: text.NewNormalizer(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with recovery, request logging, and CORS,
// and registers every route.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.loggingMiddleware())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        corsMaxAge,
	}))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/audio/:name", s.handleAudioDownload)

	api := engine.Group("/api")
	api.POST("/tts", s.handleSubmitTTS)
	api.POST("/vc", s.handleSubmitVC)
	api.POST("/uploads", s.handleUpload)
	api.GET("/jobs/:id", s.handleJobStatus)
	api.GET("/presets", s.handlePresets)
	api.GET("/samples", s.handleSamples)
	api.GET("/history", s.handleHistoryList)
	api.DELETE("/history", s.handleHistoryClear)
	api.GET("/system", s.handleSystemStatus)
	api.GET("/events", s.handleEvents)

	return engine
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		s.log.Info(
			"[HTTP] %s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			duration,
		)
	}
}
