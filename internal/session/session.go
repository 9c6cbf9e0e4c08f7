// Package session implements the orchestration core of the torrent service:
// it owns the set of active torrents, translates engine alerts into typed
// domain events, persists and restores torrent state across restarts, and
// sequences removal and storage-move operations so they cannot race with
// engine activity or with each other.
//
// A single control loop owns every registry, queue and state-machine
// mutation. Public methods post closures to the loop and wait for them to
// run; the engine's alert stream is the only other entry point and is
// drained on a timer by the same loop. Blocking I/O (resume records,
// taxonomy persistence, export copies) runs on worker goroutines that
// report back as posted messages.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/metrics"
)

// maxAlertBatch bounds how many alerts one drain cycle consumes, so an
// alert storm cannot starve posted commands.
const maxAlertBatch = 512

// addConfirmationTimeout is the policy window for the engine to confirm a
// create command before the add is reported failed.
const addConfirmationTimeout = 10 * time.Minute

type Config struct {
	Engine   ports.EngineAdapter
	Storage  ports.ResumeStorage
	Taxonomy ports.TaxonomyStorage
	Logger   *slog.Logger
	Settings domain.SessionSettings
}

type Session struct {
	engine   ports.EngineAdapter
	storage  ports.ResumeStorage
	taxonomy ports.TaxonomyStorage
	logger   *slog.Logger

	commands chan func()
	stopLoop chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	closing  atomic.Bool

	// Everything below is owned by the control loop.
	settings           domain.SessionSettings
	pendingSettings    domain.SettingsPatch
	configureScheduled bool
	configureLimiter   *rate.Limiter

	torrents         map[domain.TorrentID]*torrent
	loading          map[domain.TorrentID]*loadingTorrent
	metadataRequests map[domain.TorrentID]bool // value: engine confirmed the handle
	removing         map[domain.TorrentID]*removingTorrentData

	dirty         map[domain.TorrentID]uint64 // mutation generation per dirty torrent
	saveRequested map[domain.TorrentID]uint64 // generation at serialize-request time

	outstandingSaves int
	abandonedSaves   int
	shutdownIdle     chan struct{}
	shuttingDown     bool

	downloadQueue []domain.TorrentID

	moveQueue []moveStorageJob
	moving    bool

	categories map[string]domain.CategoryOptions
	tags       map[domain.Tag]struct{}

	resumeCtx *resumeSessionContext
	restored  bool

	status domain.SessionStatus

	alertTicker *time.Ticker
	saveTicker  *time.Ticker

	subMu       sync.Mutex
	subscribers map[int]chan domain.Event
	nextSubID   int
}

func New(cfg Config) *Session {
	settings := cfg.Settings
	defaults := domain.DefaultSettings()
	if settings.RefreshInterval <= 0 {
		settings.RefreshInterval = defaults.RefreshInterval
	}
	if settings.SaveResumeDataInterval <= 0 {
		settings.SaveResumeDataInterval = defaults.SaveResumeDataInterval
	}
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = defaults.ShutdownTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		engine:           cfg.Engine,
		storage:          cfg.Storage,
		taxonomy:         cfg.Taxonomy,
		logger:           logger,
		settings:         settings,
		configureLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		commands:         make(chan func(), 64),
		stopLoop:         make(chan struct{}),
		loopDone:         make(chan struct{}),
		torrents:         make(map[domain.TorrentID]*torrent),
		loading:          make(map[domain.TorrentID]*loadingTorrent),
		metadataRequests: make(map[domain.TorrentID]bool),
		removing:         make(map[domain.TorrentID]*removingTorrentData),
		dirty:            make(map[domain.TorrentID]uint64),
		saveRequested:    make(map[domain.TorrentID]uint64),
		categories:       make(map[string]domain.CategoryOptions),
		tags:             make(map[domain.Tag]struct{}),
		shutdownIdle:     make(chan struct{}),
		subscribers:      make(map[int]chan domain.Event),
	}
}

// Start brings the session up: loads the persisted taxonomy, starts the
// engine adapter and the control loop, and kicks off the startup resume
// protocol. The registry is not "restored" until the Restored event fires.
func (s *Session) Start(ctx context.Context) error {
	if s.taxonomy != nil {
		categories, err := s.taxonomy.LoadCategories(ctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		for name, options := range categories {
			s.categories[name] = options
		}
		tags, err := s.taxonomy.LoadTags(ctx)
		if err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		for _, tag := range tags {
			s.tags[tag] = struct{}{}
		}
	}

	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}

	s.alertTicker = time.NewTicker(s.settings.RefreshInterval)
	go s.run()

	s.prepareStartup(ctx)
	return nil
}

func (s *Session) run() {
	defer close(s.loopDone)
	defer s.alertTicker.Stop()
	for {
		var saveC <-chan time.Time
		if s.saveTicker != nil {
			saveC = s.saveTicker.C
		}
		select {
		case <-s.stopLoop:
			if s.saveTicker != nil {
				s.saveTicker.Stop()
			}
			return
		case fn := <-s.commands:
			fn()
		case <-s.alertTicker.C:
			s.readAlerts()
		case <-saveC:
			s.generateResumeData()
		}
	}
}

// post schedules fn on the control loop. Returns false once the loop has
// exited.
func (s *Session) post(fn func()) bool {
	select {
	case s.commands <- fn:
		return true
	case <-s.loopDone:
		return false
	}
}

// call runs fn on the control loop and waits for it to finish.
func (s *Session) call(fn func()) error {
	done := make(chan struct{})
	if !s.post(func() {
		fn()
		close(done)
	}) {
		return domain.ErrShuttingDown
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone:
		return domain.ErrShuttingDown
	}
}

// Shutdown drains outstanding resume-data saves before stopping the control
// loop. New torrent mutations are refused as soon as it is called. If the
// bounded wait elapses first the remaining saves are abandoned and reported;
// possible data loss is surfaced, never swallowed.
func (s *Session) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	if err := s.call(s.beginShutdown); err != nil {
		return err
	}

	timeout := s.settingsSnapshot().ShutdownTimeout
	select {
	case <-s.shutdownIdle:
	case <-time.After(timeout):
	case <-ctx.Done():
	}

	var abandoned int
	_ = s.call(func() {
		abandoned = s.outstandingSaves
		s.abandonedSaves = abandoned
		s.status.AbandonedSaves = abandoned
	})

	s.stopOnce.Do(func() { close(s.stopLoop) })
	<-s.loopDone

	if abandoned > 0 {
		s.logger.Warn("shutdown abandoned resume-data saves",
			slog.Int("abandoned", abandoned),
		)
		return fmt.Errorf("shutdown abandoned %d resume-data saves", abandoned)
	}
	return nil
}

// beginShutdown runs on the loop: flush every dirty torrent, then let the
// save completions drive shutdownIdle.
func (s *Session) beginShutdown() {
	s.shuttingDown = true
	s.requestDirtySaves()
	s.checkShutdownIdle()
}

func (s *Session) checkShutdownIdle() {
	if !s.shuttingDown || s.outstandingSaves > 0 {
		return
	}
	select {
	case <-s.shutdownIdle:
	default:
		close(s.shutdownIdle)
	}
}

func (s *Session) settingsSnapshot() domain.SessionSettings {
	var snapshot domain.SessionSettings
	if err := s.call(func() { snapshot = s.settings }); err != nil {
		return s.settings
	}
	return snapshot
}

// Settings returns the current settings snapshot.
func (s *Session) Settings() domain.SessionSettings {
	return s.settingsSnapshot()
}

// Status returns the session-level counters accumulated from alerts.
func (s *Session) Status() domain.SessionStatus {
	var status domain.SessionStatus
	_ = s.call(func() {
		status = s.status
		status.TorrentsCount = len(s.torrents)
	})
	return status
}

func (s *Session) IsRestored() bool {
	var restored bool
	_ = s.call(func() { restored = s.restored })
	return restored
}

func (s *Session) IsPaused() bool {
	return s.settingsSnapshot().Paused
}

// Pause suspends all engine transfer activity via a settings batch.
func (s *Session) Pause() {
	paused := true
	s.ApplySettings(domain.SettingsPatch{Paused: &paused})
}

func (s *Session) Resume() {
	paused := false
	s.ApplySettings(domain.SettingsPatch{Paused: &paused})
}

// BanIP forwards a ban to the engine and records it in the settings batch so
// it survives reconfiguration.
func (s *Session) BanIP(ip string) error {
	if net.ParseIP(ip) == nil {
		return domain.ErrInvalidName
	}
	return s.call(func() {
		if err := s.engine.BanIP(ip); err != nil {
			s.logger.Warn("ban ip failed", slog.String("ip", ip), slog.String("error", err.Error()))
			return
		}
		for _, existing := range s.settings.BannedIPs {
			if existing == ip {
				return
			}
		}
		s.settings.BannedIPs = append(s.settings.BannedIPs, ip)
		s.status.PeersBanned++
	})
}

// Events subscribes to the session's event stream. Events are delivered
// best-effort: a subscriber that cannot keep up loses events (counted in
// metrics) rather than blocking the control loop. The returned cancel
// function closes the channel.
func (s *Session) Events(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.Event, buffer)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// emit fans an event out to all subscribers. Loop only.
func (s *Session) emit(ev domain.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			metrics.EventsDroppedTotal.Inc()
		}
	}
}
