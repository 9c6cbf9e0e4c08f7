package session

import (
	"context"
	"log/slog"

	"torrentsession/internal/domain"
)

type removalPhase int

const (
	engineAckPending removalPhase = iota
	contentDeletePending
)

// removingTorrentData survives the registry entity: the torrent disappears
// from queries the moment removal is requested, while this record tracks the
// engine handshake until content deletion is confirmed or fails.
type removingTorrentData struct {
	name         string
	pathToRemove string
	option       domain.RemoveOption
	phase        removalPhase
}

// moveStorageJob is one queued storage relocation. Jobs run strictly one at
// a time across all torrents; a new request for a torrent that already has a
// queued (not yet running) job replaces that job instead of queuing behind it.
type moveStorageJob struct {
	id   domain.TorrentID
	path string
	mode domain.MoveStorageMode
}

// RemoveTorrent removes a torrent from the session, optionally deleting its
// content. The entity leaves the registry immediately; content deletion is
// confirmed asynchronously.
func (s *Session) RemoveTorrent(id domain.TorrentID, opt domain.RemoveOption) error {
	var result error
	err := s.call(func() {
		result = s.removeTorrent(id, opt)
	})
	if err != nil {
		return err
	}
	return result
}

// removeTorrent runs on the loop.
func (s *Session) removeTorrent(id domain.TorrentID, opt domain.RemoveOption) error {
	t, ok := s.torrents[id]
	if !ok {
		return domain.ErrNotFound
	}

	s.emit(domain.TorrentAboutToBeRemoved{ID: id, Name: t.name})

	s.removing[id] = &removingTorrentData{
		name:         t.name,
		pathToRemove: t.savePath,
		option:       opt,
		phase:        engineAckPending,
	}
	delete(s.torrents, id)
	s.removeFromQueue(id)
	delete(s.dirty, id)
	s.dropQueuedMoves(id)

	if err := s.engine.DestroyTorrent(id, opt); err != nil {
		s.logger.Error("destroy torrent failed",
			slog.String("id", string(id)),
			slog.String("error", err.Error()),
		)
	}

	if s.storage != nil {
		go func() {
			if err := s.storage.Remove(context.Background(), id); err != nil {
				s.logger.Warn("removing resume record failed",
					slog.String("id", string(id)),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	return nil
}

func (s *Session) handleTorrentRemoved(a domain.TorrentRemovedAlert) {
	rd, ok := s.removing[a.ID]
	if !ok {
		return
	}
	if rd.option == domain.RemoveContent {
		// Content deletion outcome arrives as a separate alert.
		rd.phase = contentDeletePending
		return
	}
	delete(s.removing, a.ID)
	s.emit(domain.TorrentRemoved{ID: a.ID})
}

func (s *Session) handleTorrentDeleted(a domain.TorrentDeletedAlert) {
	if _, ok := s.removing[a.ID]; !ok {
		return
	}
	delete(s.removing, a.ID)
	s.emit(domain.TorrentRemoved{ID: a.ID})
}

func (s *Session) handleTorrentDeleteFailed(a domain.TorrentDeleteFailedAlert) {
	rd, ok := s.removing[a.ID]
	if !ok {
		return
	}
	delete(s.removing, a.ID)
	s.logger.Error("content deletion failed",
		slog.String("id", string(a.ID)),
		slog.String("name", rd.name),
		slog.String("path", rd.pathToRemove),
		slog.String("error", a.Msg),
	)
	s.emit(domain.TorrentDeleteFailed{ID: a.ID, Name: rd.name, Reason: a.Msg})
}

// MoveTorrentStorage queues a storage relocation for the torrent.
func (s *Session) MoveTorrentStorage(id domain.TorrentID, path string, mode domain.MoveStorageMode) error {
	if path == "" {
		return domain.ErrInvalidName
	}
	var result error
	err := s.call(func() {
		if _, ok := s.torrents[id]; !ok {
			result = domain.ErrNotFound
			return
		}
		s.enqueueMove(moveStorageJob{id: id, path: path, mode: mode})
	})
	if err != nil {
		return err
	}
	return result
}

// enqueueMove adds a job to the global move queue, coalescing with any
// not-yet-running job for the same torrent. Loop only.
func (s *Session) enqueueMove(job moveStorageJob) {
	for i := range s.moveQueue {
		if s.moveQueue[i].id == job.id {
			s.moveQueue[i] = job
			return
		}
	}
	s.moveQueue = append(s.moveQueue, job)
	s.dispatchNextMove()
}

// dropQueuedMoves discards pending jobs for a torrent being removed. A job
// already running completes on its own; its alert resolves against an
// unknown id and is dropped.
func (s *Session) dropQueuedMoves(id domain.TorrentID) {
	kept := s.moveQueue[:0]
	for _, job := range s.moveQueue {
		if job.id != id {
			kept = append(kept, job)
		}
	}
	s.moveQueue = kept
}

// dispatchNextMove starts the next queued job if none is running. Failures to
// even start a job are reported like failed moves and the queue keeps
// draining.
func (s *Session) dispatchNextMove() {
	for !s.moving && len(s.moveQueue) > 0 {
		job := s.moveQueue[0]
		s.moveQueue = s.moveQueue[1:]
		if err := s.engine.MoveStorage(job.id, job.path, job.mode); err != nil {
			s.logger.Warn("move storage rejected",
				slog.String("id", string(job.id)),
				slog.String("path", job.path),
				slog.String("error", err.Error()),
			)
			s.emit(domain.StorageMoveFailed{ID: job.id, Reason: err.Error()})
			continue
		}
		s.moving = true
	}
}

func (s *Session) handleStorageMoved(a domain.StorageMovedAlert) {
	s.moving = false
	if t, ok := s.torrents[a.ID]; ok {
		t.savePath = a.Path
		s.markDirty(t.id)
		s.emit(domain.SavePathChanged{ID: t.id, Path: a.Path})
	}
	s.dispatchNextMove()
}

func (s *Session) handleStorageMoveFailed(a domain.StorageMoveFailedAlert) {
	s.moving = false
	if _, ok := s.torrents[a.ID]; ok {
		s.logger.Warn("move storage failed",
			slog.String("id", string(a.ID)),
			slog.String("error", a.Msg),
		)
		s.emit(domain.StorageMoveFailed{ID: a.ID, Reason: a.Msg})
	}
	s.dispatchNextMove()
}
