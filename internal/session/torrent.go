package session

import (
	"sort"
	"time"

	"torrentsession/internal/domain"
)

// torrent is the loop-owned registry entity. Never leaks outside the control
// loop; queries copy it into a TorrentInfo snapshot.
type torrent struct {
	id       domain.TorrentID
	infoHash domain.InfoHash
	magnet   string

	name     string
	state    domain.TorrentState
	category string
	tags     map[domain.Tag]struct{}

	savePath   string
	autoTMM    bool
	stopped    bool
	stopCond   domain.StopCondition
	queuePos   int // dense 0-based position; -1 when not queued
	trackers   []string
	hasMeta    bool
	progress   float64
	dlRate     int64
	ulRate     int64
	peers      int
	addedAt    time.Time
	fromResume bool
	metainfo   []byte // raw .torrent bytes when added from a file, for export
}

func (t *torrent) hasTracker(url string) bool {
	for _, existing := range t.trackers {
		if existing == url {
			return true
		}
	}
	return false
}

// TorrentInfo is the immutable view of one torrent returned by queries.
type TorrentInfo struct {
	ID            domain.TorrentID    `json:"id"`
	InfoHash      domain.InfoHash     `json:"infoHash"`
	Name          string              `json:"name"`
	State         domain.TorrentState `json:"state"`
	Category      string              `json:"category"`
	Tags          []domain.Tag        `json:"tags"`
	SavePath      string              `json:"savePath"`
	AutoTMM       bool                `json:"autoTMM"`
	Stopped       bool                `json:"stopped"`
	QueuePosition int                 `json:"queuePosition"`
	Trackers      []string            `json:"trackers"`
	HasMetadata   bool                `json:"hasMetadata"`
	Progress      float64             `json:"progress"`
	DownloadRate  int64               `json:"downloadRate"`
	UploadRate    int64               `json:"uploadRate"`
	Peers         int                 `json:"peers"`
	AddedAt       time.Time           `json:"addedAt"`
}

func snapshotTorrent(t *torrent) TorrentInfo {
	tags := make([]domain.Tag, 0, len(t.tags))
	for tag := range t.tags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	trackers := make([]string, len(t.trackers))
	copy(trackers, t.trackers)

	return TorrentInfo{
		ID:            t.id,
		InfoHash:      t.infoHash,
		Name:          t.name,
		State:         t.state,
		Category:      t.category,
		Tags:          tags,
		SavePath:      t.savePath,
		AutoTMM:       t.autoTMM,
		Stopped:       t.stopped,
		QueuePosition: t.queuePos,
		Trackers:      trackers,
		HasMetadata:   t.hasMeta,
		Progress:      t.progress,
		DownloadRate:  t.dlRate,
		UploadRate:    t.ulRate,
		Peers:         t.peers,
		AddedAt:       t.addedAt,
	}
}

// markDirty bumps the torrent's mutation generation. A save request issued
// before a later mutation will not clear the flag when it completes, so no
// update is ever lost between serialize and persist.
func (s *Session) markDirty(id domain.TorrentID) {
	s.dirty[id]++
}
