package session

import (
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
)

// readAlerts drains one bounded batch from the engine and dispatches each
// alert in emission order. Runs on the control loop; anything left in the
// engine's buffer is picked up on the next tick.
func (s *Session) readAlerts() {
	alerts := s.engine.PopAlerts(maxAlertBatch)
	for _, alert := range alerts {
		s.handleAlert(alert)
	}
	metrics.AlertsProcessedTotal.Add(float64(len(alerts)))
	s.expireLoadingDeadlines(time.Now())
}

func (s *Session) handleAlert(alert domain.Alert) {
	switch a := alert.(type) {
	case domain.TorrentAddedAlert:
		s.handleTorrentAdded(a)
	case domain.StateUpdateAlert:
		s.handleStateUpdate(a)
	case domain.MetadataReceivedAlert:
		s.handleMetadataReceived(a)
	case domain.FileErrorAlert:
		s.handleFileError(a)
	case domain.TorrentRemovedAlert:
		s.handleTorrentRemoved(a)
	case domain.TorrentDeletedAlert:
		s.handleTorrentDeleted(a)
	case domain.TorrentDeleteFailedAlert:
		s.handleTorrentDeleteFailed(a)
	case domain.StorageMovedAlert:
		s.handleStorageMoved(a)
	case domain.StorageMoveFailedAlert:
		s.handleStorageMoveFailed(a)
	case domain.SaveResumeDataAlert:
		s.handleSaveResumeData(a)
	case domain.SaveResumeDataFailedAlert:
		s.handleSaveResumeDataFailed(a)
	case domain.TrackerAlert:
		s.handleTracker(a)
	case domain.ListenSucceededAlert:
		s.status.Listening = true
		s.status.ListenAddress = a.Address
		s.logger.Info("listening", slog.String("address", a.Address))
	case domain.ListenFailedAlert:
		s.logger.Warn("listen failed",
			slog.String("address", a.Address),
			slog.String("error", a.Msg),
		)
		s.emit(domain.ListenFailed{Address: a.Address, Reason: a.Msg})
	case domain.ExternalIPAlert:
		s.handleExternalIP(a)
	case domain.PortmapAlert:
		s.logger.Info("port mapped", slog.Int("port", a.Port))
	case domain.PortmapFailedAlert:
		s.logger.Warn("port mapping failed", slog.String("error", a.Msg))
	case domain.PeerBlockedAlert:
		s.status.PeersBlocked++
	case domain.PeerBanAlert:
		s.status.PeersBanned++
	case domain.Socks5Alert:
		s.logger.Warn("socks5 proxy", slog.String("error", a.Msg))
	case domain.SessionStatsAlert:
		s.status.Stats = a.Stats
		metrics.DownloadSpeedBytes.Set(float64(a.Stats.DownloadRate))
		metrics.UploadSpeedBytes.Set(float64(a.Stats.UploadRate))
		metrics.PeersConnected.Set(float64(a.Stats.PeersConnected))
		s.emit(domain.StatsUpdated{Stats: a.Stats})
	case domain.AlertsDroppedAlert:
		s.status.AlertsDropped += a.Count
		metrics.AlertsDroppedTotal.Add(float64(a.Count))
		s.logger.Warn("engine dropped alerts", slog.Int("count", a.Count))
	default:
		s.logger.Debug("unhandled alert type")
	}
}

// handleTorrentAdded resolves a pending create command: either materializes
// the registry entity or reports the failure. Alerts for ids with no pending
// entry are dropped.
func (s *Session) handleTorrentAdded(a domain.TorrentAddedAlert) {
	id := a.ID

	if confirmed, ok := s.metadataRequests[id]; ok {
		if a.Err != "" {
			delete(s.metadataRequests, id)
			s.emit(domain.AddTorrentFailed{InfoHash: a.InfoHash, Reason: a.Err})
			return
		}
		if !confirmed {
			s.metadataRequests[id] = true
		}
		return
	}

	lt, ok := s.loading[id]
	if !ok {
		s.logger.Debug("added alert for unknown torrent", slog.String("id", string(id)))
		return
	}
	delete(s.loading, id)

	if a.Err != "" {
		if lt.fromResume {
			s.resumeRecordFailed(a.Err)
		} else {
			s.emit(domain.AddTorrentFailed{InfoHash: a.InfoHash, Reason: a.Err})
		}
		return
	}

	t := s.materializeTorrent(id, a.InfoHash, a.Name, lt)
	s.emit(domain.TorrentAdded{ID: id, Name: t.name})
	if lt.fromResume {
		s.resumeRecordLoaded()
	}
}

// expireLoadingDeadlines fails pending adds the engine never confirmed.
func (s *Session) expireLoadingDeadlines(now time.Time) {
	for id, lt := range s.loading {
		if now.Before(lt.deadline) {
			continue
		}
		delete(s.loading, id)
		s.logger.Warn("add confirmation timed out", slog.String("id", string(id)))
		if lt.fromResume {
			s.resumeRecordFailed("confirmation timeout")
		} else {
			s.emit(domain.AddTorrentFailed{
				InfoHash: lt.desc.InfoHash(),
				Reason:   "confirmation timeout",
			})
		}
	}
}

func (s *Session) handleStateUpdate(a domain.StateUpdateAlert) {
	finishedAny := false
	for _, u := range a.Updates {
		t, ok := s.torrents[u.ID]
		if !ok {
			continue
		}
		oldState := t.state

		t.progress = u.Progress
		t.dlRate = u.DownloadRate
		t.ulRate = u.UploadRate
		t.peers = u.Peers
		if u.Name != "" && t.name != u.Name {
			t.name = u.Name
			s.markDirty(t.id)
		}
		if u.HasMetadata && !t.hasMeta {
			t.hasMeta = true
		}
		if u.State == "" || u.State == oldState {
			continue
		}
		t.state = u.State

		if oldState == domain.StateChecking {
			s.emit(domain.TorrentFinishedChecking{ID: t.id})
		}
		switch {
		case u.State == domain.StateStopped:
			t.stopped = true
			s.markDirty(t.id)
			s.emit(domain.TorrentStopped{ID: t.id})
		case oldState == domain.StateStopped:
			t.stopped = false
			s.markDirty(t.id)
			s.emit(domain.TorrentStarted{ID: t.id})
		}
		if u.State.IsSeeding() && !oldState.IsSeeding() {
			s.removeFromQueue(t.id)
			s.markDirty(t.id)
			s.emit(domain.TorrentFinished{ID: t.id})
			finishedAny = true
			if dir := s.settings.FinishedTorrentExportDirectory; dir != "" && len(t.metainfo) > 0 {
				s.exportMetainfo(dir, t.name, t.metainfo)
			}
		}
	}
	s.status.TorrentsCount = len(s.torrents)
	metrics.TorrentsActive.Set(float64(len(s.torrents)))
	if finishedAny && s.allTorrentsFinished() {
		s.emit(domain.AllTorrentsFinished{})
	}
}

// allTorrentsFinished reports whether no torrent is still fetching data.
func (s *Session) allTorrentsFinished() bool {
	for _, t := range s.torrents {
		switch t.state {
		case domain.StateDownloading, domain.StateQueued, domain.StateChecking:
			return false
		}
	}
	return len(s.loading) == 0
}

func (s *Session) handleMetadataReceived(a domain.MetadataReceivedAlert) {
	if _, ok := s.metadataRequests[a.ID]; ok {
		delete(s.metadataRequests, a.ID)
		s.emit(domain.MetadataDownloaded{ID: a.ID, Name: a.Name})
		if err := s.engine.DestroyTorrent(a.ID, domain.KeepContent); err != nil {
			s.logger.Warn("destroy metadata handle failed",
				slog.String("id", string(a.ID)),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	t, ok := s.torrents[a.ID]
	if !ok {
		return
	}
	t.hasMeta = true
	if a.Name != "" && t.name != a.Name {
		t.name = a.Name
	}
	s.markDirty(t.id)
	s.emit(domain.TorrentMetadataReceived{ID: t.id, Name: t.name})
}

func (s *Session) handleFileError(a domain.FileErrorAlert) {
	t, ok := s.torrents[a.ID]
	if !ok {
		return
	}
	t.state = domain.StateError
	s.logger.Error("torrent file error",
		slog.String("id", string(a.ID)),
		slog.String("path", a.Path),
		slog.String("error", a.Msg),
	)
	s.emit(domain.FullDiskError{ID: a.ID, Msg: a.Msg})
}

func (s *Session) handleTracker(a domain.TrackerAlert) {
	if _, ok := s.torrents[a.ID]; !ok {
		return
	}
	s.emit(domain.TrackerStatusUpdated{ID: a.ID, URL: a.URL, Status: a.Status})
}

func (s *Session) handleExternalIP(a domain.ExternalIPAlert) {
	if s.status.ExternalIP == a.IP {
		return
	}
	s.status.ExternalIP = a.IP
	s.logger.Info("external ip", slog.String("ip", a.IP))
	s.emit(domain.ExternalIPChanged{IP: a.IP})
	if s.settings.ReannounceWhenAddressChanged {
		// The engine reannounces on its own; the setting just makes the change loud.
		s.logger.Info("address changed, trackers will be reannounced")
	}
}
