package domain

// Event is a typed notification produced by the session for external
// listeners. Each variant carries exactly the payload its consumers need;
// events never expose live registry entities.
type Event interface {
	Kind() EventKind
}

type EventKind string

const (
	EventTorrentAdded            EventKind = "torrentAdded"
	EventTorrentAboutToBeRemoved EventKind = "torrentAboutToBeRemoved"
	EventTorrentRemoved          EventKind = "torrentRemoved"
	EventTorrentDeleteFailed     EventKind = "torrentDeleteFailed"
	EventTorrentFinished         EventKind = "torrentFinished"
	EventTorrentFinishedChecking EventKind = "torrentFinishedChecking"
	EventTorrentMetadataReceived EventKind = "torrentMetadataReceived"
	EventTorrentStopped          EventKind = "torrentStopped"
	EventTorrentStarted          EventKind = "torrentStarted"
	EventSavePathChanged         EventKind = "savePathChanged"
	EventStorageMoveFailed       EventKind = "storageMoveFailed"
	EventCategoryAdded           EventKind = "categoryAdded"
	EventCategoryRemoved         EventKind = "categoryRemoved"
	EventCategoryOptionsChanged  EventKind = "categoryOptionsChanged"
	EventTorrentCategoryChanged  EventKind = "torrentCategoryChanged"
	EventTagAdded                EventKind = "tagAdded"
	EventTagRemoved              EventKind = "tagRemoved"
	EventTorrentTagAdded         EventKind = "torrentTagAdded"
	EventTorrentTagRemoved       EventKind = "torrentTagRemoved"
	EventTrackersChanged         EventKind = "trackersChanged"
	EventTrackerStatusUpdated    EventKind = "trackerStatusUpdated"
	EventAddTorrentFailed        EventKind = "addTorrentFailed"
	EventLoadTorrentFailed       EventKind = "loadTorrentFailed"
	EventRestored                EventKind = "restored"
	EventStartupProgress         EventKind = "startupProgress"
	EventStatsUpdated            EventKind = "statsUpdated"
	EventFullDiskError           EventKind = "fullDiskError"
	EventAllTorrentsFinished     EventKind = "allTorrentsFinished"
	EventSessionPaused           EventKind = "sessionPaused"
	EventSessionResumed          EventKind = "sessionResumed"
	EventListenFailed            EventKind = "listenFailed"
	EventExternalIPChanged       EventKind = "externalIPChanged"
	EventMetadataDownloaded      EventKind = "metadataDownloaded"
)

type TorrentAdded struct {
	ID   TorrentID `json:"id"`
	Name string    `json:"name"`
}

func (TorrentAdded) Kind() EventKind { return EventTorrentAdded }

type TorrentAboutToBeRemoved struct {
	ID   TorrentID `json:"id"`
	Name string    `json:"name"`
}

func (TorrentAboutToBeRemoved) Kind() EventKind { return EventTorrentAboutToBeRemoved }

type TorrentRemoved struct {
	ID TorrentID `json:"id"`
}

func (TorrentRemoved) Kind() EventKind { return EventTorrentRemoved }

type TorrentDeleteFailed struct {
	ID     TorrentID `json:"id"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
}

func (TorrentDeleteFailed) Kind() EventKind { return EventTorrentDeleteFailed }

type TorrentFinished struct {
	ID TorrentID `json:"id"`
}

func (TorrentFinished) Kind() EventKind { return EventTorrentFinished }

type TorrentFinishedChecking struct {
	ID TorrentID `json:"id"`
}

func (TorrentFinishedChecking) Kind() EventKind { return EventTorrentFinishedChecking }

type TorrentMetadataReceived struct {
	ID   TorrentID `json:"id"`
	Name string    `json:"name"`
}

func (TorrentMetadataReceived) Kind() EventKind { return EventTorrentMetadataReceived }

// MetadataDownloaded fires for metadata-only requests; the handle is
// destroyed right after.
type MetadataDownloaded struct {
	ID   TorrentID `json:"id"`
	Name string    `json:"name"`
}

func (MetadataDownloaded) Kind() EventKind { return EventMetadataDownloaded }

type TorrentStopped struct {
	ID TorrentID `json:"id"`
}

func (TorrentStopped) Kind() EventKind { return EventTorrentStopped }

type TorrentStarted struct {
	ID TorrentID `json:"id"`
}

func (TorrentStarted) Kind() EventKind { return EventTorrentStarted }

type SavePathChanged struct {
	ID   TorrentID `json:"id"`
	Path string    `json:"path"`
}

func (SavePathChanged) Kind() EventKind { return EventSavePathChanged }

type StorageMoveFailed struct {
	ID     TorrentID `json:"id"`
	Reason string    `json:"reason"`
}

func (StorageMoveFailed) Kind() EventKind { return EventStorageMoveFailed }

type CategoryAdded struct {
	Name string `json:"name"`
}

func (CategoryAdded) Kind() EventKind { return EventCategoryAdded }

type CategoryRemoved struct {
	Name string `json:"name"`
}

func (CategoryRemoved) Kind() EventKind { return EventCategoryRemoved }

type CategoryOptionsChanged struct {
	Name string `json:"name"`
}

func (CategoryOptionsChanged) Kind() EventKind { return EventCategoryOptionsChanged }

type TorrentCategoryChanged struct {
	ID          TorrentID `json:"id"`
	OldCategory string    `json:"oldCategory"`
	Category    string    `json:"category"`
}

func (TorrentCategoryChanged) Kind() EventKind { return EventTorrentCategoryChanged }

type TagAdded struct {
	Tag Tag `json:"tag"`
}

func (TagAdded) Kind() EventKind { return EventTagAdded }

type TagRemoved struct {
	Tag Tag `json:"tag"`
}

func (TagRemoved) Kind() EventKind { return EventTagRemoved }

type TorrentTagAdded struct {
	ID  TorrentID `json:"id"`
	Tag Tag       `json:"tag"`
}

func (TorrentTagAdded) Kind() EventKind { return EventTorrentTagAdded }

type TorrentTagRemoved struct {
	ID  TorrentID `json:"id"`
	Tag Tag       `json:"tag"`
}

func (TorrentTagRemoved) Kind() EventKind { return EventTorrentTagRemoved }

type TrackersChanged struct {
	ID TorrentID `json:"id"`
}

func (TrackersChanged) Kind() EventKind { return EventTrackersChanged }

type TrackerStatusUpdated struct {
	ID     TorrentID     `json:"id"`
	URL    string        `json:"url"`
	Status TrackerStatus `json:"status"`
}

func (TrackerStatusUpdated) Kind() EventKind { return EventTrackerStatusUpdated }

type AddTorrentFailed struct {
	InfoHash InfoHash `json:"infoHash"`
	Reason   string   `json:"reason"`
}

func (AddTorrentFailed) Kind() EventKind { return EventAddTorrentFailed }

type LoadTorrentFailed struct {
	Reason string `json:"reason"`
}

func (LoadTorrentFailed) Kind() EventKind { return EventLoadTorrentFailed }

// Restored fires exactly once per process lifetime, after every persisted
// record has reached a terminal outcome.
type Restored struct{}

func (Restored) Kind() EventKind { return EventRestored }

type StartupProgress struct {
	Percent int `json:"percent"`
}

func (StartupProgress) Kind() EventKind { return EventStartupProgress }

type StatsUpdated struct {
	Stats SessionStats `json:"stats"`
}

func (StatsUpdated) Kind() EventKind { return EventStatsUpdated }

type FullDiskError struct {
	ID  TorrentID `json:"id"`
	Msg string    `json:"msg"`
}

func (FullDiskError) Kind() EventKind { return EventFullDiskError }

type AllTorrentsFinished struct{}

func (AllTorrentsFinished) Kind() EventKind { return EventAllTorrentsFinished }

type SessionPaused struct{}

func (SessionPaused) Kind() EventKind { return EventSessionPaused }

type SessionResumed struct{}

func (SessionResumed) Kind() EventKind { return EventSessionResumed }

type ListenFailed struct {
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

func (ListenFailed) Kind() EventKind { return EventListenFailed }

type ExternalIPChanged struct {
	IP string `json:"ip"`
}

func (ExternalIPChanged) Kind() EventKind { return EventExternalIPChanged }
