package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swarmlink/gossip-node/pkg/network"
	"github.com/swarmlink/gossip-node/pkg/storage"
)

func newTestAPI(t *testing.T) (*Server, *network.GossipServer) {
	t.Helper()

	cfg := network.DefaultConfig()
	cfg.Identity = "api-test-node"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.ProbeInterval = time.Hour

	engine := network.NewGossipServer(cfg)
	err := engine.Start()
	assert.NoError(t, err)
	t.Cleanup(func() { engine.Stop() })

	journal, err := storage.NewGossipJournal(filepath.Join(t.TempDir(), "journal.db"), time.Hour)
	assert.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	engine.AttachJournal(journal)

	return NewServer(engine, journal, nil, DefaultConfig()), engine
}

func doRequest(server *Server, method, url string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	return w
}

func TestAPIHealth(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
}

func TestAPIStats(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "GET", "/api/v1/network/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &stats)
	assert.NoError(t, err)
	assert.Equal(t, "api-test-node", stats["identity"])
	assert.Equal(t, float64(0), stats["active_peers"])
}

func TestAPIPeersEmpty(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "GET", "/api/v1/network/peers", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Count int                `json:"count"`
		Peers []network.PeerInfo `json:"peers"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, 0, response.Count)
}

func TestAPIPublishAndJournal(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "POST", "/api/v1/gossip/publish", PublishRequest{
		Content:     `{"event":"test"}`,
		ContentType: "test/event",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var published struct {
		Success     bool   `json:"success"`
		Fingerprint string `json:"fingerprint"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &published)
	assert.NoError(t, err)
	assert.True(t, published.Success)
	assert.Len(t, published.Fingerprint, 64)

	// The published message shows up in the recent view...
	w = doRequest(server, "GET", "/api/v1/gossip/recent", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var recent struct {
		Count   int                     `json:"count"`
		Entries []*storage.JournalEntry `json:"entries"`
	}
	err = json.Unmarshal(w.Body.Bytes(), &recent)
	assert.NoError(t, err)
	assert.Equal(t, 1, recent.Count)
	assert.Equal(t, published.Fingerprint, recent.Entries[0].Fingerprint)

	// ...and is addressable by fingerprint.
	w = doRequest(server, "GET", fmt.Sprintf("/api/v1/gossip/message/%s", published.Fingerprint), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var entry storage.JournalEntry
	err = json.Unmarshal(w.Body.Bytes(), &entry)
	assert.NoError(t, err)
	assert.Equal(t, "test/event", entry.ContentType)
}

func TestAPILookupUnknownFingerprint(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "GET", "/api/v1/gossip/message/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIPublishValidation(t *testing.T) {
	server, _ := newTestAPI(t)

	// Missing content_type
	w := doRequest(server, "POST", "/api/v1/gossip/publish", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIConnectValidation(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "POST", "/api/v1/network/connect", map[string]string{"address": "127.0.0.1:1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIDiscoveryDisabled(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "GET", "/api/v1/discovery/info", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, false, response["enabled"])
}

func TestAPIMetricsEndpoint(t *testing.T) {
	server, _ := newTestAPI(t)

	w := doRequest(server, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gossipnode_")
}
