// Package anacrolix adapts the anacrolix/torrent client to the engine port
// consumed by the session orchestrator. Commands return quickly; outcomes are
// reported through an internal alert queue drained by the orchestrator.
package anacrolix

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"

	"torrentsession/internal/domain"
)

// defaultMaxConns balances peer connections against resource usage.
const defaultMaxConns = 35

// alertQueueCap bounds the internal alert buffer. Overflow is counted and
// surfaced as an alerts-dropped alert instead of blocking the client.
const alertQueueCap = 8192

// statsInterval is how often the engine synthesizes a state-update batch and
// a session-stats alert.
const statsInterval = time.Second

type Config struct {
	DataDir    string
	ListenPort int
	Seed       bool
}

type handle struct {
	t            *torrent.Torrent
	savePath     string
	magnet       string
	metadataOnly bool
	stopped      bool
	infoSeen     bool
}

type Engine struct {
	cfg    Config
	client *torrent.Client

	mu      sync.Mutex
	handles map[domain.TorrentID]*handle
	banned  map[string]struct{}
	paused  bool

	alertMu sync.Mutex
	alerts  []domain.Alert
	dropped int

	speedMu sync.Mutex
	speeds  map[domain.TorrentID]speedSample
	totals  sessionTotals

	statsDone chan struct{}
	statsStop chan struct{}
}

type sessionTotals struct {
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

func New(cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		handles:   make(map[domain.TorrentID]*handle),
		banned:    make(map[string]struct{}),
		speeds:    make(map[domain.TorrentID]speedSample),
		statsDone: make(chan struct{}),
		statsStop: make(chan struct{}),
	}
}

func (e *Engine) Start(ctx context.Context) error {
	clientConfig := torrent.NewDefaultClientConfig()
	if e.cfg.DataDir != "" {
		clientConfig.DataDir = e.cfg.DataDir
	}
	if e.cfg.ListenPort > 0 {
		clientConfig.ListenPort = e.cfg.ListenPort
	}
	clientConfig.Seed = e.cfg.Seed

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		e.queueAlert(domain.ListenFailedAlert{
			Address: fmt.Sprintf(":%d", e.cfg.ListenPort),
			Msg:     err.Error(),
		})
		return fmt.Errorf("torrent client: %w", err)
	}
	e.client = client

	if addrs := client.ListenAddrs(); len(addrs) > 0 {
		e.queueAlert(domain.ListenSucceededAlert{Address: addrs[0].String()})
	}

	go e.statsLoop()
	return nil
}

func (e *Engine) Close() error {
	close(e.statsStop)
	<-e.statsDone
	if e.client == nil {
		return nil
	}
	errs := e.client.Close()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// CreateTorrent registers the content with the client on a worker goroutine
// and reports the outcome as an added alert.
func (e *Engine) CreateTorrent(desc domain.TorrentDescriptor, params domain.LoadTorrentParams) error {
	if e.client == nil {
		return domain.ErrShuttingDown
	}
	id := desc.InfoHash().ToTorrentID()
	go e.addTorrent(id, desc, params)
	return nil
}

func (e *Engine) addTorrent(id domain.TorrentID, desc domain.TorrentDescriptor, params domain.LoadTorrentParams) {
	spec, err := e.buildSpec(desc, params)
	if err != nil {
		e.queueAlert(domain.TorrentAddedAlert{
			TorrentAlertScope: domain.TorrentAlertScope{ID: id},
			InfoHash:          desc.InfoHash(),
			Err:               err.Error(),
		})
		return
	}

	t, _, err := e.client.AddTorrentSpec(spec)
	if err != nil {
		e.queueAlert(domain.TorrentAddedAlert{
			TorrentAlertScope: domain.TorrentAlertScope{ID: id},
			InfoHash:          desc.InfoHash(),
			Err:               err.Error(),
		})
		return
	}

	realID := domain.TorrentID(t.InfoHash().HexString())
	h := &handle{
		t:            t,
		savePath:     params.SavePath,
		magnet:       desc.Magnet,
		metadataOnly: params.MetadataOnly,
		stopped:      params.Stopped,
	}
	e.mu.Lock()
	e.handles[realID] = h
	paused := e.paused
	e.mu.Unlock()

	if len(params.Trackers) > 0 {
		t.AddTrackers([][]string{params.Trackers})
	}
	if params.Stopped || paused {
		stopTorrent(t)
	}

	e.queueAlert(domain.TorrentAddedAlert{
		TorrentAlertScope: domain.TorrentAlertScope{ID: realID},
		InfoHash:          domain.InfoHash(t.InfoHash().HexString()),
		Name:              t.Name(),
	})

	go e.watchInfo(realID, h)
}

// MergeTorrentMetadata feeds a .torrent file to an existing handle that was
// created from a magnet link. The metadata-received alert fires through the
// usual info watcher once the client accepts the bytes.
func (e *Engine) MergeTorrentMetadata(id domain.TorrentID, data []byte) error {
	e.mu.Lock()
	h, ok := e.handles[id]
	e.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse metainfo: %w", err)
	}
	if err := h.t.SetInfoBytes(mi.InfoBytes); err != nil {
		return fmt.Errorf("set info bytes: %w", err)
	}
	return nil
}

func (e *Engine) buildSpec(desc domain.TorrentDescriptor, params domain.LoadTorrentParams) (*torrent.TorrentSpec, error) {
	var spec *torrent.TorrentSpec
	switch {
	case len(desc.Metainfo) > 0:
		mi, err := metainfo.Load(bytes.NewReader(desc.Metainfo))
		if err != nil {
			return nil, fmt.Errorf("parse metainfo: %w", err)
		}
		spec, err = torrent.TorrentSpecFromMetaInfoErr(mi)
		if err != nil {
			return nil, fmt.Errorf("metainfo spec: %w", err)
		}
	case desc.Magnet != "":
		var err error
		spec, err = torrent.TorrentSpecFromMagnetUri(desc.Magnet)
		if err != nil {
			return nil, fmt.Errorf("parse magnet: %w", err)
		}
	default:
		return nil, fmt.Errorf("descriptor carries neither magnet nor metainfo")
	}
	if params.Name != "" && spec.DisplayName == "" {
		spec.DisplayName = params.Name
	}
	if params.SavePath != "" {
		spec.Storage = storage.NewFile(params.SavePath)
	}
	return spec, nil
}

// watchInfo waits for metadata and reports it. For regular torrents it also
// kicks off the download.
func (e *Engine) watchInfo(id domain.TorrentID, h *handle) {
	select {
	case <-h.t.GotInfo():
	case <-h.t.Closed():
		return
	case <-e.statsStop:
		return
	}

	e.mu.Lock()
	if current, ok := e.handles[id]; !ok || current != h {
		e.mu.Unlock()
		return
	}
	h.infoSeen = true
	stopped := h.stopped
	metadataOnly := h.metadataOnly
	paused := e.paused
	e.mu.Unlock()

	e.queueAlert(domain.MetadataReceivedAlert{
		TorrentAlertScope: domain.TorrentAlertScope{ID: id},
		Name:              h.t.Name(),
	})

	if !stopped && !metadataOnly && !paused {
		h.t.DownloadAll()
	}
}

// DestroyTorrent drops the client handle and, when requested, deletes the
// content on a worker goroutine.
func (e *Engine) DestroyTorrent(id domain.TorrentID, opt domain.RemoveOption) error {
	e.mu.Lock()
	h, ok := e.handles[id]
	if ok {
		delete(e.handles, id)
	}
	e.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	contentPath := ""
	if opt == domain.RemoveContent {
		if name := h.t.Name(); name != "" && h.savePath != "" {
			contentPath = filepath.Join(h.savePath, name)
		}
	}

	h.t.Drop()
	e.forgetSpeed(id)
	e.queueAlert(domain.TorrentRemovedAlert{TorrentAlertScope: domain.TorrentAlertScope{ID: id}})

	if opt != domain.RemoveContent {
		return nil
	}
	go func() {
		if contentPath == "" {
			e.queueAlert(domain.TorrentDeleteFailedAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
				Msg:               "content path unknown",
			})
			return
		}
		if err := os.RemoveAll(contentPath); err != nil {
			e.queueAlert(domain.TorrentDeleteFailedAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
				Msg:               err.Error(),
			})
			return
		}
		e.queueAlert(domain.TorrentDeletedAlert{TorrentAlertScope: domain.TorrentAlertScope{ID: id}})
	}()
	return nil
}

// MoveStorage relocates a torrent's content directory on a worker goroutine.
// The anacrolix client has no live storage migration, so the move is a
// filesystem rename performed while transfers continue against the old
// handle; the new path takes full effect on the next restart.
func (e *Engine) MoveStorage(id domain.TorrentID, path string, mode domain.MoveStorageMode) error {
	e.mu.Lock()
	h, ok := e.handles[id]
	e.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	go func() {
		name := h.t.Name()
		if name == "" {
			e.queueAlert(domain.StorageMoveFailedAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
				Msg:               "torrent name unknown",
			})
			return
		}
		src := filepath.Join(h.savePath, name)
		dst := filepath.Join(path, name)

		if mode == domain.MoveStorageFailIfExist {
			if _, err := os.Stat(dst); err == nil {
				e.queueAlert(domain.StorageMoveFailedAlert{
					TorrentAlertScope: domain.TorrentAlertScope{ID: id},
					Msg:               "destination already exists",
				})
				return
			}
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			e.queueAlert(domain.StorageMoveFailedAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
				Msg:               err.Error(),
			})
			return
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			e.queueAlert(domain.StorageMoveFailedAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
				Msg:               err.Error(),
			})
			return
		}
		e.mu.Lock()
		h.savePath = path
		e.mu.Unlock()
		e.queueAlert(domain.StorageMovedAlert{
			TorrentAlertScope: domain.TorrentAlertScope{ID: id},
			Path:              path,
		})
	}()
	return nil
}

// RequestResumeData serializes the torrent's metainfo as the opaque resume
// blob. Without metadata an empty blob is reported; the orchestrator's record
// still carries the magnet link.
func (e *Engine) RequestResumeData(id domain.TorrentID) error {
	e.mu.Lock()
	h, ok := e.handles[id]
	e.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	go func() {
		if !h.infoSeen {
			e.queueAlert(domain.SaveResumeDataAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
			})
			return
		}
		mi := h.t.Metainfo()
		var buf bytes.Buffer
		if err := mi.Write(&buf); err != nil {
			e.queueAlert(domain.SaveResumeDataFailedAlert{
				TorrentAlertScope: domain.TorrentAlertScope{ID: id},
				Msg:               err.Error(),
			})
			return
		}
		e.queueAlert(domain.SaveResumeDataAlert{
			TorrentAlertScope: domain.TorrentAlertScope{ID: id},
			Data:              buf.Bytes(),
		})
	}()
	return nil
}

// Reconfigure applies a settings snapshot. Listen-port changes need a client
// restart and are only logged; pause state is enforced across all handles.
func (e *Engine) Reconfigure(settings domain.SessionSettings) error {
	e.mu.Lock()
	pauseChanged := e.paused != settings.Paused
	e.paused = settings.Paused
	for _, ip := range settings.BannedIPs {
		e.banned[ip] = struct{}{}
	}
	handles := make([]*handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	if e.cfg.ListenPort != settings.ListenPort && settings.ListenPort > 0 {
		slog.Info("listen port change takes effect on restart",
			slog.Int("current", e.cfg.ListenPort),
			slog.Int("requested", settings.ListenPort),
		)
	}

	if !pauseChanged {
		return nil
	}
	for _, h := range handles {
		if settings.Paused {
			stopTorrent(h.t)
			continue
		}
		if !h.stopped {
			resumeTorrent(h.t, h.metadataOnly)
		}
	}
	return nil
}

// BanIP records the address. The client offers no live peer eviction, so the
// ban gates new connections and becomes a blocklist entry on restart.
func (e *Engine) BanIP(ip string) error {
	e.mu.Lock()
	e.banned[ip] = struct{}{}
	e.mu.Unlock()
	e.queueAlert(domain.PeerBanAlert{IP: ip})
	return nil
}

// stopTorrent prevents all network activity for a torrent.
func stopTorrent(t *torrent.Torrent) {
	t.DisallowDataDownload()
	t.DisallowDataUpload()
	t.SetMaxEstablishedConns(0)
}

// resumeTorrent re-enables data transfer and peer connections.
func resumeTorrent(t *torrent.Torrent, metadataOnly bool) {
	t.SetMaxEstablishedConns(defaultMaxConns)
	t.AllowDataUpload()
	t.AllowDataDownload()
	if !metadataOnly && torrentInfoReady(t) {
		t.DownloadAll()
	}
}

func torrentInfoReady(t *torrent.Torrent) bool {
	select {
	case <-t.GotInfo():
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Alert queue
// ---------------------------------------------------------------------------

func (e *Engine) queueAlert(a domain.Alert) {
	e.alertMu.Lock()
	defer e.alertMu.Unlock()
	if len(e.alerts) >= alertQueueCap {
		e.dropped++
		return
	}
	e.alerts = append(e.alerts, a)
}

// PopAlerts drains up to max alerts in emission order. Any overflow since the
// previous drain is reported as a trailing alerts-dropped alert.
func (e *Engine) PopAlerts(max int) []domain.Alert {
	e.alertMu.Lock()
	defer e.alertMu.Unlock()

	n := len(e.alerts)
	if max > 0 && n > max {
		n = max
	}
	out := make([]domain.Alert, n)
	copy(out, e.alerts[:n])
	e.alerts = append(e.alerts[:0], e.alerts[n:]...)

	if e.dropped > 0 && len(e.alerts) < alertQueueCap {
		out = append(out, domain.AlertsDroppedAlert{Count: e.dropped})
		e.dropped = 0
	}
	return out
}

// ---------------------------------------------------------------------------
// Periodic state synthesis
// ---------------------------------------------------------------------------

func (e *Engine) statsLoop() {
	defer close(e.statsDone)
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.statsStop:
			return
		case <-ticker.C:
			e.synthesizeStateUpdates()
		}
	}
}

func (e *Engine) synthesizeStateUpdates() {
	now := time.Now().UTC()

	e.mu.Lock()
	type entry struct {
		id domain.TorrentID
		h  *handle
	}
	entries := make([]entry, 0, len(e.handles))
	for id, h := range e.handles {
		entries = append(entries, entry{id, h})
	}
	paused := e.paused
	e.mu.Unlock()

	var (
		updates      []domain.TorrentStatusUpdate
		totalRead    int64
		totalWritten int64
		totalPeers   int
	)
	for _, en := range entries {
		t := en.h.t
		select {
		case <-t.Closed():
			continue
		default:
		}
		stats := t.Stats()
		dl, ul := e.sampleSpeed(en.id, stats, now)
		totalRead += stats.BytesReadUsefulData.Int64()
		totalWritten += stats.BytesWrittenData.Int64()
		totalPeers += stats.ActivePeers

		ready := torrentInfoReady(t)
		var progress float64
		if ready && t.Length() > 0 {
			progress = float64(t.BytesCompleted()) / float64(t.Length())
		}
		updates = append(updates, domain.TorrentStatusUpdate{
			ID:           en.id,
			State:        deriveState(t, en.h, ready, paused, progress),
			Progress:     progress,
			DownloadRate: dl,
			UploadRate:   ul,
			Peers:        stats.ActivePeers,
			HasMetadata:  ready,
			Name:         t.Name(),
		})
	}

	if len(updates) > 0 {
		e.queueAlert(domain.StateUpdateAlert{Updates: updates})
	}

	e.speedMu.Lock()
	prev := e.totals
	e.totals = sessionTotals{at: now, bytesRead: totalRead, bytesWritten: totalWritten}
	e.speedMu.Unlock()

	var dlRate, ulRate int64
	if !prev.at.IsZero() {
		if dt := now.Sub(prev.at).Seconds(); dt > 0 {
			dlRate = int64(float64(totalRead-prev.bytesRead) / dt)
			ulRate = int64(float64(totalWritten-prev.bytesWritten) / dt)
		}
	}
	if dlRate < 0 {
		dlRate = 0
	}
	if ulRate < 0 {
		ulRate = 0
	}
	e.queueAlert(domain.SessionStatsAlert{Stats: domain.SessionStats{
		DownloadRate:    dlRate,
		UploadRate:      ulRate,
		TotalDownloaded: totalRead,
		TotalUploaded:   totalWritten,
		PeersConnected:  totalPeers,
	}})
}

func deriveState(t *torrent.Torrent, h *handle, ready, paused bool, progress float64) domain.TorrentState {
	if h.stopped {
		return domain.StateStopped
	}
	if paused {
		return domain.StatePaused
	}
	if !ready {
		return domain.StateDownloading // fetching metadata
	}
	if progress >= 1 {
		return domain.StateSeeding
	}
	if t.Stats().ActivePeers == 0 && t.BytesCompleted() == 0 {
		return domain.StateQueued
	}
	return domain.StateDownloading
}

// ---------------------------------------------------------------------------
// Per-torrent speed sampling
// ---------------------------------------------------------------------------

type speedSample struct {
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

func (e *Engine) sampleSpeed(id domain.TorrentID, stats torrent.TorrentStats, now time.Time) (int64, int64) {
	currentRead := stats.BytesReadUsefulData.Int64()
	currentWritten := stats.BytesWrittenData.Int64()

	e.speedMu.Lock()
	defer e.speedMu.Unlock()

	prev, ok := e.speeds[id]
	e.speeds[id] = speedSample{
		at:           now,
		bytesRead:    currentRead,
		bytesWritten: currentWritten,
	}

	if !ok || prev.at.IsZero() {
		return 0, 0
	}

	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}

	deltaRead := currentRead - prev.bytesRead
	deltaWritten := currentWritten - prev.bytesWritten
	if deltaRead < 0 {
		deltaRead = 0
	}
	if deltaWritten < 0 {
		deltaWritten = 0
	}
	return int64(float64(deltaRead) / dt), int64(float64(deltaWritten) / dt)
}

func (e *Engine) forgetSpeed(id domain.TorrentID) {
	e.speedMu.Lock()
	delete(e.speeds, id)
	e.speedMu.Unlock()
}
