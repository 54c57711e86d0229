// Package httpapi is the broker's read-only admin/introspection
// surface: a UI/control-thread view, entirely separate from the
// publish/dispatch path. It never accepts a publish over HTTP and the
// diagnostics websocket never carries a Message payload, only
// periodic counter snapshots — this module observes the broker, it
// does not extend its transport.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rackmcp/mcpbroker/broker"
)

// Handler serves the admin HTTP and diagnostics websocket routes over
// a Broker.
type Handler struct {
	b         *broker.Broker
	startTime time.Time
	upgrader  websocket.Upgrader
	logger    *log.Logger
}

// NewHandler builds a Handler over b. A nil logger defaults to
// log.Default().
func NewHandler(b *broker.Broker, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		b:         b,
		startTime: time.Now(),
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts every admin route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/topics", func(r chi.Router) {
		r.Get("/", h.ListTopics)
		r.Get("/{name}/stats", h.TopicStats)
	})
	r.Get("/health", h.Health)
	r.Get("/ws/diagnostics", h.Diagnostics)
}

type listTopicsResponse struct {
	Topics []string `json:"topics"`
}

// ListTopics handles GET /topics: every topic with a live provider.
func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listTopicsResponse{Topics: h.b.AvailableTopics()})
}

// TopicStats handles GET /topics/{name}/stats: published/delivered/
// subscriber-panic counters for a single topic.
func (h *Handler) TopicStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tm := h.b.Metrics().TopicSnapshot(name)
	if tm == nil {
		http.Error(w, "topic not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tm)
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       int     `json:"version"`
	TopicsCount   int     `json:"topics_count"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Version:       h.b.Version(),
		TopicsCount:   len(h.b.AvailableTopics()),
	})
}

type diagnosticsSnapshot struct {
	ConnectionID string    `json:"connection_id"`
	Timestamp    time.Time `json:"timestamp"`
	TotalMetrics any       `json:"metrics"`
}

// Diagnostics handles GET /ws/diagnostics: upgrades to a websocket and
// pushes a metrics snapshot every second until the client disconnects.
// It never writes a Message payload to the socket.
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		snap := diagnosticsSnapshot{
			ConnectionID: connID,
			Timestamp:    time.Now(),
			TotalMetrics: h.b.Metrics().Snapshot(),
		}
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
