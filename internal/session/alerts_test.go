package session

import (
	"testing"

	"torrentsession/internal/domain"
)

func stateUpdate(id domain.TorrentID, state domain.TorrentState) domain.StateUpdateAlert {
	return domain.StateUpdateAlert{Updates: []domain.TorrentStatusUpdate{{
		ID:    id,
		State: state,
	}}}
}

func TestStateTransitionsEmitEvents(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	id := addActiveTorrent(t, s, engine, testHash('a'), "t", domain.AddTorrentParams{})

	events, cancel := s.Events(64)
	defer cancel()

	// checking -> downloading closes the checking phase.
	engine.push(stateUpdate(id, domain.StateDownloading))
	drainAlerts(s)
	waitEvent(t, events, domain.EventTorrentFinishedChecking)

	engine.push(stateUpdate(id, domain.StateStopped))
	drainAlerts(s)
	waitEvent(t, events, domain.EventTorrentStopped)
	info, _ := s.Get(id)
	if !info.Stopped {
		t.Fatalf("snapshot not stopped after stop transition")
	}

	engine.push(stateUpdate(id, domain.StateDownloading))
	drainAlerts(s)
	waitEvent(t, events, domain.EventTorrentStarted)
}

func TestFinishTransitionLeavesQueue(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	first := addActiveTorrent(t, s, engine, testHash('b'), "one", domain.AddTorrentParams{})
	second := addActiveTorrent(t, s, engine, testHash('c'), "two", domain.AddTorrentParams{})

	events, cancel := s.Events(64)
	defer cancel()

	engine.push(stateUpdate(first, domain.StateSeeding))
	drainAlerts(s)
	waitEvent(t, events, domain.EventTorrentFinished)

	info, _ := s.Get(first)
	if info.QueuePosition != -1 {
		t.Fatalf("finished torrent queue position = %d, want -1", info.QueuePosition)
	}
	other, _ := s.Get(second)
	if other.QueuePosition != 0 {
		t.Fatalf("remaining torrent not repacked to 0: %d", other.QueuePosition)
	}

	engine.push(stateUpdate(second, domain.StateSeeding))
	drainAlerts(s)
	waitEvent(t, events, domain.EventAllTorrentsFinished)
}

func TestAlertsForUnknownTorrentsDropped(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	ghost := testHash('d').ToTorrentID()
	engine.push(
		stateUpdate(ghost, domain.StateSeeding),
		domain.TrackerAlert{TorrentAlertScope: domain.TorrentAlertScope{ID: ghost}, URL: "http://tr", Status: domain.TrackerOK},
		domain.TorrentRemovedAlert{TorrentAlertScope: domain.TorrentAlertScope{ID: ghost}},
		domain.StorageMovedAlert{TorrentAlertScope: domain.TorrentAlertScope{ID: ghost}, Path: "/x"},
	)
	drainAlerts(s)

	if s.Count() != 0 {
		t.Fatalf("registry grew from unknown-id alerts")
	}
}

func TestFileErrorMarksTorrent(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	id := addActiveTorrent(t, s, engine, testHash('e'), "t", domain.AddTorrentParams{})

	events, cancel := s.Events(32)
	defer cancel()

	engine.push(domain.FileErrorAlert{
		TorrentAlertScope: domain.TorrentAlertScope{ID: id},
		Path:              "/full/disk",
		Msg:               "no space left on device",
	})
	drainAlerts(s)

	ev := waitEvent(t, events, domain.EventFullDiskError).(domain.FullDiskError)
	if ev.ID != id {
		t.Fatalf("full disk event id = %s", ev.ID)
	}
	info, _ := s.Get(id)
	if info.State != domain.StateError {
		t.Fatalf("state = %s, want error", info.State)
	}
}

func TestMetadataReceivedUpdatesName(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	id := addActiveTorrent(t, s, engine, testHash('f'), "", domain.AddTorrentParams{})

	events, cancel := s.Events(32)
	defer cancel()

	engine.push(domain.MetadataReceivedAlert{
		TorrentAlertScope: domain.TorrentAlertScope{ID: id},
		Name:              "resolved name",
	})
	drainAlerts(s)

	waitEvent(t, events, domain.EventTorrentMetadataReceived)
	info, _ := s.Get(id)
	if !info.HasMetadata || info.Name != "resolved name" {
		t.Fatalf("snapshot after metadata = %+v", info)
	}
}

func TestSessionScopedAlerts(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	events, cancel := s.Events(32)
	defer cancel()

	stats := domain.SessionStats{DownloadRate: 1024, UploadRate: 256, PeersConnected: 7}
	engine.push(
		domain.ListenSucceededAlert{Address: "0.0.0.0:6881"},
		domain.ExternalIPAlert{IP: "203.0.113.9"},
		domain.PeerBlockedAlert{IP: "198.51.100.1", Reason: "blocklist"},
		domain.SessionStatsAlert{Stats: stats},
		domain.AlertsDroppedAlert{Count: 3},
	)
	drainAlerts(s)

	waitEvent(t, events, domain.EventExternalIPChanged)
	ev := waitEvent(t, events, domain.EventStatsUpdated).(domain.StatsUpdated)
	if ev.Stats != stats {
		t.Fatalf("stats event = %+v", ev.Stats)
	}

	status := s.Status()
	if !status.Listening || status.ListenAddress != "0.0.0.0:6881" {
		t.Fatalf("listen status = %+v", status)
	}
	if status.ExternalIP != "203.0.113.9" {
		t.Fatalf("external ip = %q", status.ExternalIP)
	}
	if status.PeersBlocked != 1 {
		t.Fatalf("peers blocked = %d", status.PeersBlocked)
	}
	if status.AlertsDropped != 3 {
		t.Fatalf("alerts dropped = %d", status.AlertsDropped)
	}
	if status.Stats != stats {
		t.Fatalf("status stats = %+v", status.Stats)
	}
}

func TestExternalIPChangeEmittedOnce(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	engine.push(
		domain.ExternalIPAlert{IP: "203.0.113.9"},
		domain.ExternalIPAlert{IP: "203.0.113.9"},
	)
	drainAlerts(s)

	events, cancel := s.Events(32)
	defer cancel()

	// A repeat of the same address after subscription must not fire again.
	engine.push(domain.ExternalIPAlert{IP: "203.0.113.9"})
	drainAlerts(s)
	engine.push(domain.ExternalIPAlert{IP: "203.0.113.10"})
	drainAlerts(s)

	ev := waitEvent(t, events, domain.EventExternalIPChanged).(domain.ExternalIPChanged)
	if ev.IP != "203.0.113.10" {
		t.Fatalf("first observed change = %q, want the new address only", ev.IP)
	}
}
