package session

import (
	"testing"
	"time"

	"torrentsession/internal/domain"
)

func TestApplySettingsBatchedIntoOneReconfigure(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	maxDownloads := 7
	maxUploads := 9
	port := 7000
	s.ApplySettings(domain.SettingsPatch{MaxActiveDownloads: &maxDownloads})
	s.ApplySettings(domain.SettingsPatch{MaxActiveUploads: &maxUploads})
	s.ApplySettings(domain.SettingsPatch{ListenPort: &port})

	waitFor(t, "settings applied", func() bool {
		settings := s.Settings()
		return settings.MaxActiveDownloads == 7 &&
			settings.MaxActiveUploads == 9 &&
			settings.ListenPort == 7000
	})

	// The burst folds into at most two engine passes: one immediate, one
	// rate-limited catch-up.
	engine.mu.Lock()
	reconfigures := engine.reconfigures
	last := engine.lastSettings
	engine.mu.Unlock()
	if reconfigures == 0 || reconfigures > 2 {
		t.Fatalf("reconfigure passes = %d, want 1 or 2", reconfigures)
	}
	if last.MaxActiveDownloads != 7 || last.MaxActiveUploads != 9 || last.ListenPort != 7000 {
		t.Fatalf("engine saw stale settings: %+v", last)
	}
}

func TestLaterPatchWinsPerField(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	first := "/first"
	second := "/second"
	s.ApplySettings(domain.SettingsPatch{SavePath: &first})
	s.ApplySettings(domain.SettingsPatch{SavePath: &second})

	waitFor(t, "save path applied", func() bool {
		return s.Settings().SavePath == second
	})
	if got := s.Settings().SavePath; got != "/second" {
		t.Fatalf("save path = %q", got)
	}
}

func TestPauseResumeEmitEvents(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	events, cancel := s.Events(32)
	defer cancel()

	s.Pause()
	waitEvent(t, events, domain.EventSessionPaused)
	waitFor(t, "paused", s.IsPaused)

	s.Resume()
	waitEvent(t, events, domain.EventSessionResumed)
	waitFor(t, "resumed", func() bool { return !s.IsPaused() })
}

func TestSavePathChangeRelocatesManagedTorrents(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	managed := addActiveTorrent(t, s, engine, testHash('a'), "managed", domain.AddTorrentParams{})
	manual := addActiveTorrent(t, s, engine, testHash('b'), "manual", domain.AddTorrentParams{
		SavePath: "/pinned",
	})

	newPath := "/srv/downloads"
	s.ApplySettings(domain.SettingsPatch{SavePath: &newPath})

	waitFor(t, "relocation move", func() bool { return engine.moveCount() == 1 })
	engine.mu.Lock()
	job := engine.moves[0]
	engine.mu.Unlock()
	if job.id != managed || job.path != newPath {
		t.Fatalf("relocation job = %+v", job)
	}

	// The manually placed torrent stays where it is.
	time.Sleep(50 * time.Millisecond)
	if got := engine.moveCount(); got != 1 {
		t.Fatalf("manual torrent relocated: %d moves", got)
	}
	info, _ := s.Get(manual)
	if info.SavePath != "/pinned" {
		t.Fatalf("manual save path = %q", info.SavePath)
	}
}

func TestRefreshIntervalChangeTakesEffect(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	// With the test interval at an hour, the drain only happens once the
	// patched interval kicks in.
	interval := 10 * time.Millisecond
	s.ApplySettings(domain.SettingsPatch{RefreshInterval: &interval})
	waitFor(t, "patched interval applied", func() bool {
		return s.Settings().RefreshInterval == interval
	})

	engine.push(domain.ListenSucceededAlert{Address: "0.0.0.0:6881"})
	waitFor(t, "alert drained by ticker", func() bool {
		return s.Status().Listening
	})
}
