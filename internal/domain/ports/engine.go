package ports

import (
	"context"

	"torrentsession/internal/domain"
)

// EngineAdapter wraps the external protocol engine. Commands are
// fire-and-forget: their effects are observed later, in order, through the
// alert drain. The adapter must never block a command on network or disk I/O.
type EngineAdapter interface {
	Start(ctx context.Context) error
	Close() error

	CreateTorrent(desc domain.TorrentDescriptor, params domain.LoadTorrentParams) error
	// MergeTorrentMetadata hands raw .torrent bytes to a torrent that was
	// registered without them (added by magnet).
	MergeTorrentMetadata(id domain.TorrentID, metainfo []byte) error
	DestroyTorrent(id domain.TorrentID, opt domain.RemoveOption) error
	MoveStorage(id domain.TorrentID, path string, mode domain.MoveStorageMode) error
	RequestResumeData(id domain.TorrentID) error
	Reconfigure(settings domain.SessionSettings) error
	BanIP(ip string) error

	// PopAlerts drains up to max pending alerts in emission order. A zero or
	// negative max means no bound.
	PopAlerts(max int) []domain.Alert
}
