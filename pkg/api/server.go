// Package api provides the HTTP admin surface for a gossip node
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swarmlink/gossip-node/pkg/discovery"
	"github.com/swarmlink/gossip-node/pkg/network"
	"github.com/swarmlink/gossip-node/pkg/storage"
	"github.com/swarmlink/gossip-node/pkg/telemetry"
)

// Server exposes engine state and controls over HTTP
type Server struct {
	engine     *network.GossipServer
	journal    *storage.GossipJournal // optional
	discovery  *discovery.Node        // optional
	router     *gin.Engine
	port       int
	httpServer *http.Server
}

// Config holds server configuration
type Config struct {
	Port         int
	EnableCORS   bool
	RateLimit    int // Requests per minute
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		RateLimit:    100,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP admin server. journal and disc may be nil
// when the node runs without persistence or discovery.
func NewServer(engine *network.GossipServer, journal *storage.GossipJournal, disc *discovery.Node, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		engine:    engine,
		journal:   journal,
		discovery: disc,
		router:    router,
		port:      config.Port,
	}

	server.setupMiddleware(config)
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(config *Config) {
	if config.EnableCORS {
		s.router.Use(CORSMiddleware())
	}

	s.router.Use(RateLimitMiddleware(config.RateLimit))
	s.router.Use(LoggingMiddleware())
	s.router.Use(gin.Recovery())
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		net := v1.Group("/network")
		{
			net.GET("/peers", s.handlePeers)
			net.GET("/stats", s.handleStats)
			net.POST("/connect", s.handleConnect)
		}

		gossip := v1.Group("/gossip")
		{
			gossip.POST("/publish", s.handlePublish)
			gossip.GET("/recent", s.handleRecent)
			gossip.GET("/message/:fingerprint", s.handleLookup)
		}

		disc := v1.Group("/discovery")
		{
			disc.GET("/info", s.handleDiscoveryInfo)
		}
	}

	// Health check endpoint (outside versioning)
	s.router.GET("/health", s.handleHealth)

	// Prometheus scrape endpoint
	s.router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("🌐 Admin API listening on port %d...\n", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Admin API error: %v\n", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
