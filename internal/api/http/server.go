// Package apihttp exposes the session orchestrator over HTTP and fans its
// event stream out to WebSocket subscribers.
package apihttp

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentsession/internal/domain"
	"torrentsession/internal/session"
)

// Orchestrator is the session surface the handlers consume.
type Orchestrator interface {
	AddTorrent(desc domain.TorrentDescriptor, params domain.AddTorrentParams) error
	RemoveTorrent(id domain.TorrentID, opt domain.RemoveOption) error
	Get(id domain.TorrentID) (session.TorrentInfo, bool)
	All() []session.TorrentInfo
	Count() int
	IsKnownTorrent(hash domain.InfoHash) bool
	DownloadMetadata(desc domain.TorrentDescriptor) error
	CancelDownloadMetadata(id domain.TorrentID) error
	MoveTorrentStorage(id domain.TorrentID, path string, mode domain.MoveStorageMode) error

	IncreaseTorrentsQueuePos(ids []domain.TorrentID)
	DecreaseTorrentsQueuePos(ids []domain.TorrentID)
	TopTorrentsQueuePos(ids []domain.TorrentID)
	BottomTorrentsQueuePos(ids []domain.TorrentID)

	Categories() []string
	CategoryOptionsOf(name string) (domain.CategoryOptions, bool)
	AddCategory(name string, options domain.CategoryOptions) error
	EditCategory(name string, options domain.CategoryOptions) error
	RemoveCategory(name string) error
	SetTorrentCategory(id domain.TorrentID, category string) error

	TagsList() []domain.Tag
	AddTag(tag domain.Tag) bool
	RemoveTag(tag domain.Tag) bool
	AddTorrentTags(id domain.TorrentID, tags []domain.Tag) error
	RemoveTorrentTags(id domain.TorrentID, tags []domain.Tag) error

	Settings() domain.SessionSettings
	ApplySettings(patch domain.SettingsPatch)
	Status() domain.SessionStatus
	IsRestored() bool
	Pause()
	Resume()
	IsPaused() bool
	BanIP(ip string) error

	Events(buffer int) (<-chan domain.Event, func())
}

type Server struct {
	session Orchestrator
	logger  *slog.Logger
	handler http.Handler
	hub     *eventHub

	cancelEvents func()
	pumpDone     chan struct{}
}

func NewServer(sess Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session:  sess,
		logger:   logger,
		pumpDone: make(chan struct{}),
	}

	s.hub = newEventHub(logger)

	events, cancel := sess.Events(256)
	s.cancelEvents = cancel
	go s.pumpEvents(events)

	mux := http.NewServeMux()
	mux.HandleFunc("/torrents", s.handleTorrents)
	mux.HandleFunc("/torrents/queue/", s.handleQueue)
	mux.HandleFunc("/torrents/", s.handleTorrentByID)
	mux.HandleFunc("/metadata", s.handleMetadata)
	mux.HandleFunc("/metadata/", s.handleMetadataByID)
	mux.HandleFunc("/categories", s.handleCategories)
	mux.HandleFunc("/categories/", s.handleCategoryByName)
	mux.HandleFunc("/tags", s.handleTags)
	mux.HandleFunc("/tags/", s.handleTagByName)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/session/pause", s.handlePause)
	mux.HandleFunc("/session/resume", s.handleResume)
	mux.HandleFunc("/session/ban", s.handleBanIP)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "torrent-session",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// pumpEvents bridges the session's event stream to the WebSocket hub.
func (s *Server) pumpEvents(events <-chan domain.Event) {
	defer close(s.pumpDone)
	for ev := range events {
		s.hub.Publish(ev)
	}
}

// Close unsubscribes from session events and disconnects all WebSocket
// clients.
func (s *Server) Close() {
	if s.cancelEvents != nil {
		s.cancelEvents()
		<-s.pumpDone
	}
	if s.hub != nil {
		s.hub.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &eventClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		filter: parseEventFilter(r.URL.Query().Get("events")),
	}
	if !s.hub.attach(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump(s.hub)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"restored": s.session.IsRestored(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.session.Status())
}
