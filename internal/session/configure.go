package session

import (
	"log/slog"
	"time"

	"torrentsession/internal/domain"
)

// ApplySettings records a settings patch and schedules one deferred
// reconfiguration pass. A burst of patches is folded into the pending batch
// (later writes win per field) and hits the engine exactly once, rate-limited
// so a misbehaving caller cannot turn settings churn into engine churn.
func (s *Session) ApplySettings(patch domain.SettingsPatch) {
	_ = s.call(func() {
		s.pendingSettings.Merge(patch)
		s.scheduleConfigure()
	})
}

// scheduleConfigure arms a single deferred configure pass. Loop only.
func (s *Session) scheduleConfigure() {
	if s.configureScheduled {
		return
	}
	s.configureScheduled = true
	delay := s.configureLimiter.Reserve().Delay()
	time.AfterFunc(delay, func() {
		s.post(s.configure)
	})
}

// configure applies the accumulated patch as one batch: orchestrator-side
// reactions first, then a single engine reconfiguration. Loop only.
func (s *Session) configure() {
	s.configureScheduled = false
	patch := s.pendingSettings
	s.pendingSettings = domain.SettingsPatch{}

	old := s.settings
	s.settings = patch.Apply(old)

	if s.settings.RefreshInterval != old.RefreshInterval && s.settings.RefreshInterval > 0 {
		s.alertTicker.Reset(s.settings.RefreshInterval)
	}
	if s.saveTicker != nil &&
		s.settings.SaveResumeDataInterval != old.SaveResumeDataInterval &&
		s.settings.SaveResumeDataInterval > 0 {
		s.saveTicker.Reset(s.settings.SaveResumeDataInterval)
	}
	if s.settings.Paused != old.Paused {
		if s.settings.Paused {
			s.logger.Info("session paused")
			s.emit(domain.SessionPaused{})
		} else {
			s.logger.Info("session resumed")
			s.emit(domain.SessionResumed{})
		}
	}
	if s.settings.SavePath != old.SavePath {
		// Category paths derive from the default; relocate managed torrents.
		s.relocateManagedTorrents()
	}

	if err := s.engine.Reconfigure(s.settings); err != nil {
		s.logger.Warn("engine reconfiguration failed", slog.String("error", err.Error()))
	}
}

// relocateManagedTorrents re-derives paths for every automatically managed
// torrent after the default save path changed. Loop only.
func (s *Session) relocateManagedTorrents() {
	for _, t := range s.torrents {
		if !t.autoTMM {
			continue
		}
		path := s.categoryPath(t.category)
		if t.savePath == path {
			continue
		}
		s.enqueueMove(moveStorageJob{
			id:   t.id,
			path: path,
			mode: domain.MoveStorageOverwrite,
		})
	}
}
