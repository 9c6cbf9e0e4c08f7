package session

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/metrics"
)

// resumeSessionContext tracks the startup restore batch. Records are
// submitted to the engine a few at a time so disk re-checks do not thrash;
// every record reaches a terminal outcome (loaded or reported failed) before
// the session declares itself restored.
type resumeSessionContext struct {
	queued      []domain.ResumeRecord
	total       int
	processed   int
	failures    int
	outstanding int
	startedAt   time.Time
}

// prepareStartup loads the persisted records off-loop and hands them to the
// control loop for submission.
func (s *Session) prepareStartup(ctx context.Context) {
	if s.storage == nil {
		s.post(func() { s.handleLoadedResumeData(nil, nil) })
		return
	}
	go func() {
		records, err := s.storage.LoadAll(ctx)
		s.post(func() { s.handleLoadedResumeData(records, err) })
	}()
}

// handleLoadedResumeData starts the restore drain. A storage failure is
// logged and degrades to an empty registry rather than blocking startup
// forever.
func (s *Session) handleLoadedResumeData(records []domain.ResumeRecord, err error) {
	if err != nil {
		s.logger.Error("loading resume records failed, starting empty",
			slog.String("error", err.Error()),
		)
		records = nil
	}
	sort.SliceStable(records, func(i, j int) bool {
		pi, pj := records[i].QueuePosition, records[j].QueuePosition
		if (pi < 0) != (pj < 0) {
			return pj < 0
		}
		return pi < pj
	})
	s.resumeCtx = &resumeSessionContext{
		queued:    records,
		total:     len(records),
		startedAt: time.Now(),
	}
	s.emit(domain.StartupProgress{Percent: 0})
	s.processNextResumeData()
}

// processNextResumeData submits queued records up to the checking-concurrency
// cap. Invalid records are failed per-record without aborting the batch.
func (s *Session) processNextResumeData() {
	rctx := s.resumeCtx
	if rctx == nil {
		return
	}
	limit := s.settings.MaxActiveCheckingTorrents
	if limit <= 0 {
		limit = 1
	}
	for rctx.outstanding < limit && len(rctx.queued) > 0 {
		rec := rctx.queued[0]
		rctx.queued = rctx.queued[1:]

		if err := rec.Validate(); err != nil {
			rctx.processed++
			rctx.failures++
			s.logger.Warn("skipping invalid resume record",
				slog.String("id", string(rec.ID)),
				slog.String("error", err.Error()),
			)
			s.emit(domain.LoadTorrentFailed{Reason: err.Error()})
			s.emitStartupProgress()
			continue
		}
		if err := s.submitResumeRecord(rec); err != nil {
			rctx.processed++
			rctx.failures++
			s.logger.Warn("resume record rejected by engine",
				slog.String("id", string(rec.ID)),
				slog.String("error", err.Error()),
			)
			s.emit(domain.LoadTorrentFailed{Reason: err.Error()})
			s.emitStartupProgress()
			continue
		}
		rctx.outstanding++
	}
	s.maybeEndStartup()
}

func (s *Session) submitResumeRecord(rec domain.ResumeRecord) error {
	desc := domain.TorrentDescriptor{
		Magnet:   rec.Magnet,
		Metainfo: rec.EngineState,
		Hash:     domain.InfoHash(rec.ID),
	}
	category := rec.Category
	if _, ok := s.categories[category]; !ok {
		category = ""
	}
	lp := domain.LoadTorrentParams{
		Name:          rec.Name,
		Category:      category,
		Tags:          rec.Tags,
		SavePath:      rec.SavePath,
		UseAutoTMM:    rec.UseAutoTMM,
		Stopped:       rec.Stopped,
		StopCondition: rec.StopCondition,
		QueuePosition: rec.QueuePosition,
		Trackers:      rec.Trackers,
	}
	s.loading[rec.ID] = &loadingTorrent{
		desc:       desc,
		params:     lp,
		deadline:   time.Now().Add(addConfirmationTimeout),
		fromResume: true,
	}
	if err := s.engine.CreateTorrent(desc, lp); err != nil {
		delete(s.loading, rec.ID)
		return err
	}
	return nil
}

// resumeRecordLoaded marks one submitted record restored and pulls the next.
func (s *Session) resumeRecordLoaded() {
	rctx := s.resumeCtx
	if rctx == nil {
		return
	}
	rctx.outstanding--
	rctx.processed++
	s.emitStartupProgress()
	s.processNextResumeData()
}

// resumeRecordFailed marks one submitted record failed and pulls the next.
func (s *Session) resumeRecordFailed(reason string) {
	rctx := s.resumeCtx
	if rctx == nil {
		return
	}
	rctx.outstanding--
	rctx.processed++
	rctx.failures++
	s.emit(domain.LoadTorrentFailed{Reason: reason})
	s.emitStartupProgress()
	s.processNextResumeData()
}

func (s *Session) emitStartupProgress() {
	rctx := s.resumeCtx
	if rctx == nil || rctx.total == 0 {
		return
	}
	s.emit(domain.StartupProgress{Percent: rctx.processed * 100 / rctx.total})
}

// maybeEndStartup fires the restored transition exactly once, after every
// record reached a terminal outcome.
func (s *Session) maybeEndStartup() {
	rctx := s.resumeCtx
	if rctx == nil || s.restored {
		return
	}
	if len(rctx.queued) > 0 || rctx.outstanding > 0 {
		return
	}
	s.restored = true
	s.resumeCtx = nil
	s.saveTicker = time.NewTicker(s.settings.SaveResumeDataInterval)
	s.logger.Info("session restored",
		slog.Int("torrents", rctx.total-rctx.failures),
		slog.Int("failures", rctx.failures),
		slog.Duration("took", time.Since(rctx.startedAt)),
	)
	metrics.TorrentsRestored.Set(float64(rctx.total - rctx.failures))
	s.emit(domain.Restored{})
}

// generateResumeData is the periodic flush: ask the engine to serialize every
// torrent mutated since its last persisted record.
func (s *Session) generateResumeData() {
	s.requestDirtySaves()
}

func (s *Session) requestDirtySaves() {
	if s.storage == nil {
		return
	}
	for id, gen := range s.dirty {
		if _, inflight := s.saveRequested[id]; inflight {
			continue
		}
		if _, ok := s.torrents[id]; !ok {
			delete(s.dirty, id)
			continue
		}
		if err := s.engine.RequestResumeData(id); err != nil {
			s.logger.Warn("request resume data failed",
				slog.String("id", string(id)),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.saveRequested[id] = gen
		s.outstandingSaves++
	}
}

// handleSaveResumeData persists serialized engine state on a worker. The
// dirty flag is cleared only if the torrent was not mutated again after the
// serialize request, so later changes are never lost.
func (s *Session) handleSaveResumeData(a domain.SaveResumeDataAlert) {
	gen, requested := s.saveRequested[a.ID]
	if !requested {
		return
	}
	delete(s.saveRequested, a.ID)

	t, ok := s.torrents[a.ID]
	if !ok || s.storage == nil {
		s.outstandingSaves--
		s.checkShutdownIdle()
		return
	}
	rec := s.recordFromTorrent(t, a.Data)
	go func() {
		err := s.storage.Store(context.Background(), rec)
		s.post(func() { s.saveCompleted(rec.ID, gen, err) })
	}()
}

func (s *Session) saveCompleted(id domain.TorrentID, gen uint64, err error) {
	s.outstandingSaves--
	if err != nil {
		s.logger.Warn("persisting resume record failed",
			slog.String("id", string(id)),
			slog.String("error", err.Error()),
		)
	} else if s.dirty[id] == gen {
		delete(s.dirty, id)
	}
	metrics.ResumeSavesTotal.Inc()
	s.checkShutdownIdle()
}

func (s *Session) handleSaveResumeDataFailed(a domain.SaveResumeDataFailedAlert) {
	if _, requested := s.saveRequested[a.ID]; !requested {
		return
	}
	delete(s.saveRequested, a.ID)
	s.outstandingSaves--
	s.logger.Warn("engine failed to serialize torrent state",
		slog.String("id", string(a.ID)),
		slog.String("error", a.Msg),
	)
	s.checkShutdownIdle()
}

func (s *Session) recordFromTorrent(t *torrent, engineState []byte) domain.ResumeRecord {
	tags := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	return domain.ResumeRecord{
		ID:            t.id,
		Name:          t.name,
		Magnet:        t.magnet,
		Category:      t.category,
		Tags:          tags,
		SavePath:      t.savePath,
		UseAutoTMM:    t.autoTMM,
		Stopped:       t.stopped,
		StopCondition: t.stopCond,
		QueuePosition: t.queuePos,
		Trackers:      append([]string(nil), t.trackers...),
		EngineState:   engineState,
		UpdatedAt:     time.Now(),
	}
}
