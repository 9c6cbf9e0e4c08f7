package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"torrentsession/internal/domain"
)

// loadingTorrent tracks a create command submitted to the engine but not yet
// confirmed by an added alert. The entity is materialized only on
// confirmation.
type loadingTorrent struct {
	desc       domain.TorrentDescriptor
	params     domain.LoadTorrentParams
	deadline   time.Time
	fromResume bool
}

// AddTorrent submits a new torrent. Duplicate adds merge supplied trackers
// and metadata into the existing entity instead of failing; the registry
// entry appears only after the engine confirms handle creation.
func (s *Session) AddTorrent(desc domain.TorrentDescriptor, params domain.AddTorrentParams) error {
	if s.closing.Load() {
		return domain.ErrShuttingDown
	}
	id := desc.InfoHash().ToTorrentID()
	if id == "" {
		return fmt.Errorf("%w: descriptor carries no info-hash", domain.ErrInvalidName)
	}
	var result error
	err := s.call(func() {
		result = s.addTorrent(id, desc, params)
	})
	if err != nil {
		return err
	}
	return result
}

// addTorrent runs on the loop.
func (s *Session) addTorrent(id domain.TorrentID, desc domain.TorrentDescriptor, params domain.AddTorrentParams) error {
	if existing, ok := s.torrents[id]; ok {
		s.mergeTrackers(existing, params.Trackers)
		s.mergeMetainfo(existing, desc.Metainfo)
		return nil
	}
	if _, ok := s.loading[id]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := s.removing[id]; ok {
		return fmt.Errorf("%w: removal in progress", domain.ErrAlreadyExists)
	}
	if _, ok := s.metadataRequests[id]; ok {
		return domain.ErrAlreadyExists
	}

	lp := s.resolveLoadParams(params)
	s.loading[id] = &loadingTorrent{
		desc:     desc,
		params:   lp,
		deadline: time.Now().Add(addConfirmationTimeout),
	}
	if err := s.engine.CreateTorrent(desc, lp); err != nil {
		delete(s.loading, id)
		return fmt.Errorf("create torrent: %w", err)
	}
	return nil
}

// mergeTrackers appends trackers not already present and emits one
// trackers-changed event if anything was added.
func (s *Session) mergeTrackers(t *torrent, trackers []string) {
	added := false
	for _, url := range trackers {
		if url == "" || t.hasTracker(url) {
			continue
		}
		t.trackers = append(t.trackers, url)
		added = true
	}
	if added {
		s.markDirty(t.id)
		s.emit(domain.TrackersChanged{ID: t.id})
	}
}

// mergeMetainfo hands the .torrent bytes of a duplicate add to an entity that
// was originally added without them.
func (s *Session) mergeMetainfo(t *torrent, metainfo []byte) {
	if len(metainfo) == 0 || len(t.metainfo) > 0 {
		return
	}
	if err := s.engine.MergeTorrentMetadata(t.id, metainfo); err != nil {
		s.logger.Warn("merging torrent metadata failed",
			slog.String("id", string(t.id)),
			slog.String("error", err.Error()),
		)
		return
	}
	t.metainfo = append([]byte(nil), metainfo...)
	s.markDirty(t.id)
	if dir := s.settings.TorrentExportDirectory; dir != "" {
		s.exportMetainfo(dir, t.name, t.metainfo)
	}
}

// resolveLoadParams merges caller options with the session defaults into the
// concrete form submitted to the engine. Unknown categories are dropped
// rather than failing the add.
func (s *Session) resolveLoadParams(params domain.AddTorrentParams) domain.LoadTorrentParams {
	lp := domain.LoadTorrentParams{
		Name:     params.Name,
		Tags:     params.Tags,
		Trackers: params.Trackers,
	}

	if _, ok := s.categories[params.Category]; ok {
		lp.Category = params.Category
	}

	if params.UseAutoTMM != nil {
		lp.UseAutoTMM = *params.UseAutoTMM
	} else {
		lp.UseAutoTMM = !s.settings.AutoTMMDisabledByDefault
	}
	if params.SavePath != "" {
		lp.SavePath = params.SavePath
		lp.UseAutoTMM = false
	} else {
		lp.SavePath = s.categoryPath(lp.Category)
	}

	if params.Stopped != nil {
		lp.Stopped = *params.Stopped
	} else {
		lp.Stopped = s.settings.AddTorrentStopped
	}
	if params.StopCondition != nil {
		lp.StopCondition = *params.StopCondition
	} else {
		lp.StopCondition = s.settings.TorrentStopCondition
	}

	addToTop := s.settings.AddTorrentToQueueTop
	if params.AddToQueueTop != nil {
		addToTop = *params.AddToQueueTop
	}
	if addToTop {
		lp.QueuePosition = 0
	} else {
		lp.QueuePosition = len(s.downloadQueue)
	}
	return lp
}

func (s *Session) categoryPath(category string) string {
	options := s.categories[category]
	return domain.CategorySavePath(s.settings.SavePath, category, options)
}

// materializeTorrent turns a confirmed loading entry into a registry entity
// and slots it into the download queue.
func (s *Session) materializeTorrent(id domain.TorrentID, hash domain.InfoHash, name string, lt *loadingTorrent) *torrent {
	lp := lt.params
	if lp.Name != "" {
		name = lp.Name
	}
	t := &torrent{
		id:         id,
		infoHash:   hash,
		magnet:     lt.desc.Magnet,
		name:       name,
		state:      domain.StateChecking,
		category:   lp.Category,
		tags:       make(map[domain.Tag]struct{}),
		savePath:   lp.SavePath,
		autoTMM:    lp.UseAutoTMM,
		stopped:    lp.Stopped,
		stopCond:   lp.StopCondition,
		queuePos:   -1,
		trackers:   append([]string(nil), lp.Trackers...),
		addedAt:    time.Now(),
		fromResume: lt.fromResume,
		metainfo:   lt.desc.Metainfo,
	}
	if lp.Stopped {
		t.state = domain.StateStopped
	}
	registered := false
	for _, raw := range lp.Tags {
		tag := domain.Tag(raw)
		if !tag.IsValid() {
			continue
		}
		t.tags[tag] = struct{}{}
		if s.addTag(tag) {
			registered = true
		}
	}
	if registered {
		s.persistTaxonomy()
	}
	s.torrents[id] = t
	s.insertIntoQueue(t, lp.QueuePosition)
	s.markDirty(id)

	if dir := s.settings.TorrentExportDirectory; dir != "" && len(lt.desc.Metainfo) > 0 {
		s.exportMetainfo(dir, name, lt.desc.Metainfo)
	}
	return t
}

// exportMetainfo copies the raw .torrent bytes into the export directory on a
// worker goroutine.
func (s *Session) exportMetainfo(dir, name string, metainfo []byte) {
	data := append([]byte(nil), metainfo...)
	go func() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("torrent export failed", slog.String("error", err.Error()))
			return
		}
		target := filepath.Join(dir, sanitizeFileName(name)+".torrent")
		if err := os.WriteFile(target, data, 0o644); err != nil {
			s.logger.Warn("torrent export failed", slog.String("error", err.Error()))
		}
	}()
}

// sanitizeFileName strips path separators so a torrent name cannot escape the
// export directory.
func sanitizeFileName(name string) string {
	if name == "" {
		return "unnamed"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", string(os.PathSeparator), "_")
	return replacer.Replace(name)
}

// Get returns a snapshot of one torrent.
func (s *Session) Get(id domain.TorrentID) (TorrentInfo, bool) {
	var info TorrentInfo
	var ok bool
	_ = s.call(func() {
		var t *torrent
		if t, ok = s.torrents[id]; ok {
			info = snapshotTorrent(t)
		}
	})
	return info, ok
}

// Find looks a torrent up by raw info-hash.
func (s *Session) Find(hash domain.InfoHash) (TorrentInfo, bool) {
	return s.Get(hash.ToTorrentID())
}

// All returns snapshots of every registered torrent, queued torrents first in
// queue order, then the rest sorted by name.
func (s *Session) All() []TorrentInfo {
	var infos []TorrentInfo
	_ = s.call(func() {
		infos = make([]TorrentInfo, 0, len(s.torrents))
		for _, t := range s.torrents {
			infos = append(infos, snapshotTorrent(t))
		}
	})
	sort.Slice(infos, func(i, j int) bool {
		pi, pj := infos[i].QueuePosition, infos[j].QueuePosition
		if (pi < 0) != (pj < 0) {
			return pj < 0
		}
		if pi != pj {
			return pi < pj
		}
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

func (s *Session) Count() int {
	var n int
	_ = s.call(func() { n = len(s.torrents) })
	return n
}

// IsKnownTorrent reports whether the hash maps to a live torrent, a pending
// add, a pending metadata download, or an in-flight removal.
func (s *Session) IsKnownTorrent(hash domain.InfoHash) bool {
	id := hash.ToTorrentID()
	var known bool
	_ = s.call(func() {
		if _, ok := s.torrents[id]; ok {
			known = true
			return
		}
		if _, ok := s.loading[id]; ok {
			known = true
			return
		}
		if _, ok := s.removing[id]; ok {
			known = true
			return
		}
		_, known = s.metadataRequests[id]
	})
	return known
}

// DownloadMetadata fetches only the metainfo for a magnet: the engine handle
// is created metadata-only and destroyed as soon as metadata arrives.
func (s *Session) DownloadMetadata(desc domain.TorrentDescriptor) error {
	if s.closing.Load() {
		return domain.ErrShuttingDown
	}
	id := desc.InfoHash().ToTorrentID()
	if id == "" {
		return fmt.Errorf("%w: descriptor carries no info-hash", domain.ErrInvalidName)
	}
	var result error
	err := s.call(func() {
		if _, ok := s.torrents[id]; ok {
			result = domain.ErrAlreadyExists
			return
		}
		if _, ok := s.loading[id]; ok {
			result = domain.ErrAlreadyExists
			return
		}
		if _, ok := s.metadataRequests[id]; ok {
			result = domain.ErrAlreadyExists
			return
		}
		lp := domain.LoadTorrentParams{
			SavePath:     s.settings.SavePath,
			MetadataOnly: true,
		}
		if err := s.engine.CreateTorrent(desc, lp); err != nil {
			result = fmt.Errorf("create torrent: %w", err)
			return
		}
		s.metadataRequests[id] = false
	})
	if err != nil {
		return err
	}
	return result
}

// CancelDownloadMetadata aborts a pending metadata download.
func (s *Session) CancelDownloadMetadata(id domain.TorrentID) error {
	var result error
	err := s.call(func() {
		confirmed, ok := s.metadataRequests[id]
		if !ok {
			result = domain.ErrNotFound
			return
		}
		delete(s.metadataRequests, id)
		if confirmed {
			if err := s.engine.DestroyTorrent(id, domain.KeepContent); err != nil {
				s.logger.Warn("destroy metadata handle failed",
					slog.String("id", string(id)),
					slog.String("error", err.Error()),
				)
			}
		}
	})
	if err != nil {
		return err
	}
	return result
}
