package domain

// Alert is an asynchronous notification emitted by the engine adapter,
// describing the outcome of a prior command or an unsolicited occurrence.
// Alerts are consumed in strict emission order by the session's drain loop.
type Alert interface {
	isAlert()
}

// TorrentAlertScope is embedded by every torrent-scoped alert. The session
// resolves ID against its registry; alerts for unknown IDs are dropped (the
// torrent was already destroyed), which is expected rather than an error.
type TorrentAlertScope struct {
	ID TorrentID
}

func (TorrentAlertScope) isAlert() {}

type sessionAlertScope struct{}

func (sessionAlertScope) isAlert() {}

// ---------------------------------------------------------------------------
// Torrent-scoped alerts
// ---------------------------------------------------------------------------

// TorrentAddedAlert confirms handle creation for a prior create command.
// A non-empty Err means the engine rejected the request.
type TorrentAddedAlert struct {
	TorrentAlertScope
	InfoHash InfoHash
	Name     string
	Err      string
}

// TorrentStatusUpdate is one entry of a StateUpdateAlert batch.
type TorrentStatusUpdate struct {
	ID           TorrentID
	State        TorrentState
	Progress     float64
	DownloadRate int64
	UploadRate   int64
	Peers        int
	HasMetadata  bool
	Name         string
}

// StateUpdateAlert carries a batch of per-torrent status refreshes, in a
// single engine emission.
type StateUpdateAlert struct {
	sessionAlertScope
	Updates []TorrentStatusUpdate
}

type MetadataReceivedAlert struct {
	TorrentAlertScope
	Name string
}

type FileErrorAlert struct {
	TorrentAlertScope
	Path string
	Msg  string
}

// TorrentRemovedAlert confirms handle destruction.
type TorrentRemovedAlert struct {
	TorrentAlertScope
}

// TorrentDeletedAlert confirms content deletion after a destroy with
// RemoveContent.
type TorrentDeletedAlert struct {
	TorrentAlertScope
}

type TorrentDeleteFailedAlert struct {
	TorrentAlertScope
	Msg string
}

type StorageMovedAlert struct {
	TorrentAlertScope
	Path string
}

type StorageMoveFailedAlert struct {
	TorrentAlertScope
	Msg string
}

// SaveResumeDataAlert carries the engine-opaque serialized state requested
// by a prior request-resume-data command.
type SaveResumeDataAlert struct {
	TorrentAlertScope
	Data []byte
}

type SaveResumeDataFailedAlert struct {
	TorrentAlertScope
	Msg string
}

// TrackerStatus is the terse outcome of one announce.
type TrackerStatus string

const (
	TrackerOK      TrackerStatus = "ok"
	TrackerWarning TrackerStatus = "warning"
	TrackerError   TrackerStatus = "error"
)

type TrackerAlert struct {
	TorrentAlertScope
	URL    string
	Status TrackerStatus
	Msg    string
}

// ---------------------------------------------------------------------------
// Session-scoped alerts
// ---------------------------------------------------------------------------

type ListenSucceededAlert struct {
	sessionAlertScope
	Address string
}

type ListenFailedAlert struct {
	sessionAlertScope
	Address string
	Msg     string
}

type ExternalIPAlert struct {
	sessionAlertScope
	IP string
}

type PortmapAlert struct {
	sessionAlertScope
	Port int
}

type PortmapFailedAlert struct {
	sessionAlertScope
	Msg string
}

type PeerBlockedAlert struct {
	sessionAlertScope
	IP     string
	Reason string
}

type PeerBanAlert struct {
	sessionAlertScope
	IP string
}

type Socks5Alert struct {
	sessionAlertScope
	Msg string
}

// SessionStats is a snapshot of engine-wide transfer counters.
type SessionStats struct {
	DownloadRate    int64
	UploadRate      int64
	TotalDownloaded int64
	TotalUploaded   int64
	PeersConnected  int
	DHTNodes        int
}

type SessionStatsAlert struct {
	sessionAlertScope
	Stats SessionStats
}

// AlertsDroppedAlert signals that the engine's internal alert buffer
// overflowed and some alerts were lost. Degraded reliability, not fatal.
type AlertsDroppedAlert struct {
	sessionAlertScope
	Count int
}
