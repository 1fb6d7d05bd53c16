package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/swarmlink/gossip-node/pkg/storage"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"stats":  s.engine.Stats(),
	})
}

// handlePeers handles GET /api/v1/network/peers
func (s *Server) handlePeers(c *gin.Context) {
	peers := s.engine.Registry().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"count": len(peers),
		"peers": peers,
	})
}

// handleStats handles GET /api/v1/network/stats
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Stats())
}

// ConnectRequest asks the engine to dial a remote peer
type ConnectRequest struct {
	Address  string `json:"address" binding:"required"`
	Identity string `json:"identity" binding:"required"`
}

// handleConnect handles POST /api/v1/network/connect
func (s *Server) handleConnect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	if err := s.engine.ConnectToPeer(req.Address, req.Identity); err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "Connection failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"identity": req.Identity,
		"address":  req.Address,
	})
}

// PublishRequest carries gossip content to originate locally
type PublishRequest struct {
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// handlePublish handles POST /api/v1/gossip/publish
func (s *Server) handlePublish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	fingerprint := s.engine.Publish([]byte(req.Content), req.ContentType)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"fingerprint": fingerprint,
	})
}

// handleRecent handles GET /api/v1/gossip/recent
func (s *Server) handleRecent(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Journal not enabled",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := s.journal.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Journal query failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleLookup handles GET /api/v1/gossip/message/:fingerprint
func (s *Server) handleLookup(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Journal not enabled",
		})
		return
	}

	entry, err := s.journal.Lookup(c.Param("fingerprint"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Unknown fingerprint",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Journal query failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// handleDiscoveryInfo handles GET /api/v1/discovery/info
func (s *Server) handleDiscoveryInfo(c *gin.Context) {
	if s.discovery == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	addrs := make([]string, 0)
	for _, addr := range s.discovery.Addresses() {
		addrs = append(addrs, addr.String())
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":       true,
		"peer_id":       s.discovery.ID().String(),
		"addresses":     addrs,
		"bootstrapped":  s.discovery.IsBootstrapped(),
		"known_engines": s.discovery.KnownEngines(),
	})
}
