package domain

import "time"

// RemoveOption selects whether removing a torrent also deletes its content
// from disk.
type RemoveOption int

const (
	KeepContent RemoveOption = iota
	RemoveContent
)

// MoveStorageMode controls how a storage move treats existing files at the
// destination.
type MoveStorageMode int

const (
	MoveStorageOverwrite MoveStorageMode = iota
	MoveStorageFailIfExist
)

// StopCondition tells the engine when a freshly added torrent should stop
// instead of proceeding to download.
type StopCondition string

const (
	StopNever            StopCondition = "none"
	StopMetadataReceived StopCondition = "metadataReceived"
	StopFilesChecked     StopCondition = "filesChecked"
)

// AddTorrentParams carries caller-supplied options for a fresh add request.
// Nil pointer fields mean "use the session default".
type AddTorrentParams struct {
	Name          string
	Category      string
	Tags          []string
	SavePath      string
	UseAutoTMM    *bool
	Stopped       *bool
	StopCondition *StopCondition
	AddToQueueTop *bool
	Trackers      []string
}

// LoadTorrentParams is the resolved form actually submitted to the engine,
// either from AddTorrentParams merged with session defaults or from a
// persisted resume record.
type LoadTorrentParams struct {
	Name          string
	Category      string
	Tags          []string
	SavePath      string
	UseAutoTMM    bool
	Stopped       bool
	StopCondition StopCondition
	QueuePosition int
	Trackers      []string
	MetadataOnly  bool
}

// ResumeRecord is one persisted torrent: enough state to reconstruct the
// engine handle on the next start without re-checking verified data.
// EngineState is opaque to the orchestrator.
type ResumeRecord struct {
	ID            TorrentID
	Name          string
	Magnet        string
	Category      string
	Tags          []string
	SavePath      string
	UseAutoTMM    bool
	Stopped       bool
	StopCondition StopCondition
	QueuePosition int
	Trackers      []string
	EngineState   []byte
	UpdatedAt     time.Time
}

// Validate checks that a record can be submitted to the engine at all.
// Records failing validation are reported per-record and never abort the
// surrounding startup batch.
func (r ResumeRecord) Validate() error {
	if r.ID == "" {
		return ErrInvalidName
	}
	if len(r.EngineState) == 0 && r.Magnet == "" {
		return ErrNotFound
	}
	return nil
}
