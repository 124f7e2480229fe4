package server

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"audio-transcriber/internal/api/middleware"
	v1routes "audio-transcriber/internal/api/v1/routes"
	"audio-transcriber/internal/api/v1/services"
	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/metrics"
	"audio-transcriber/internal/app/session"
	"audio-transcriber/internal/app/workflow"
	"audio-transcriber/web"
)

// Config represents API server configuration
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	Environment       string
	MaxBodyBytes      int64
	// Heartbeat is the ping interval of idle event streams.
	Heartbeat time.Duration
}

// Dependencies are the domain components the server exposes.
type Dependencies struct {
	Sessions      *session.Store
	NewController func() *workflow.Controller
	Policy        intake.Policy
	Provider      provider.ProviderInfo
	Metrics       *metrics.Metrics
}

// Server represents the API server
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer creates a new API server
func NewServer(config Config, deps Dependencies, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)

	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if config.Environment == "test" {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogging(logger))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"provider":  deps.Provider.Name,
			"sessions":  deps.Sessions.Len(),
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	static := web.Static()
	index, err := fs.ReadFile(static, "index.html")
	if err != nil {
		panic(err)
	}
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	router.StaticFS("/static", http.FS(static))

	serviceContainer := &v1routes.ServiceContainer{
		SessionService:       services.NewSessionService(deps.Sessions, logger),
		TranscriptionService: services.NewTranscriptionService(deps.NewController, logger),
		Policy:               deps.Policy,
		Provider:             deps.Provider,
		MaxBodyBytes:         config.MaxBodyBytes,
		Heartbeat:            config.Heartbeat,
	}

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		v1routes.RegisterRoutes(v1, serviceContainer)
	}

	// No write timeout: event streams stay open and one-shot transcriptions can be slow.
	httpServer := &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		config:     config,
		router:     router,
		httpServer: httpServer,
		logger:     logger,
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.config.Addr),
		zap.String("environment", s.config.Environment),
	)

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped unexpectedly", zap.Error(err))
		}
	}()

	s.logger.Info("API server started successfully", zap.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("API server shutdown complete")
	return nil
}

// Router returns the Gin router (useful for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
