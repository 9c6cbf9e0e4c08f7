package session

import "torrentsession/internal/domain"

// The download queue holds every non-seeding torrent in a dense order:
// positions are always 0..len-1 with no gaps. Seeding torrents carry
// position -1 and never appear in the queue.

// insertIntoQueue places t at the requested position, clamped to the queue
// bounds, and repacks. Seeding torrents are not enqueued.
func (s *Session) insertIntoQueue(t *torrent, pos int) {
	if t.state.IsSeeding() {
		t.queuePos = -1
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.downloadQueue) {
		pos = len(s.downloadQueue)
	}
	s.downloadQueue = append(s.downloadQueue, "")
	copy(s.downloadQueue[pos+1:], s.downloadQueue[pos:])
	s.downloadQueue[pos] = t.id
	s.repackQueue()
}

// removeFromQueue drops id from the queue and repacks the remaining
// positions so they stay dense.
func (s *Session) removeFromQueue(id domain.TorrentID) {
	for i, queued := range s.downloadQueue {
		if queued == id {
			s.downloadQueue = append(s.downloadQueue[:i], s.downloadQueue[i+1:]...)
			break
		}
	}
	if t, ok := s.torrents[id]; ok {
		t.queuePos = -1
	}
	s.repackQueue()
}

// repackQueue rewrites every queued torrent's position from its index.
func (s *Session) repackQueue() {
	for i, id := range s.downloadQueue {
		if t, ok := s.torrents[id]; ok {
			t.queuePos = i
		}
	}
}

// markQueueDirty flags every queued torrent for persistence; queue positions
// live in the per-torrent resume records.
func (s *Session) markQueueDirty() {
	for _, id := range s.downloadQueue {
		s.markDirty(id)
	}
}

func (s *Session) queueSelection(ids []domain.TorrentID) map[domain.TorrentID]bool {
	selected := make(map[domain.TorrentID]bool, len(ids))
	for _, id := range ids {
		t, ok := s.torrents[id]
		if !ok || t.queuePos < 0 {
			continue // unknown and unqueued ids are skipped, not errors
		}
		selected[id] = true
	}
	return selected
}

// IncreaseTorrentsQueuePos moves the selected torrents one step toward the
// queue head, preserving their relative order. Torrents already blocked at
// the top stay put.
func (s *Session) IncreaseTorrentsQueuePos(ids []domain.TorrentID) {
	_ = s.call(func() {
		selected := s.queueSelection(ids)
		if len(selected) == 0 {
			return
		}
		q := s.downloadQueue
		for i := 1; i < len(q); i++ {
			if selected[q[i]] && !selected[q[i-1]] {
				q[i], q[i-1] = q[i-1], q[i]
			}
		}
		s.repackQueue()
		s.markQueueDirty()
	})
}

// DecreaseTorrentsQueuePos moves the selected torrents one step toward the
// queue tail.
func (s *Session) DecreaseTorrentsQueuePos(ids []domain.TorrentID) {
	_ = s.call(func() {
		selected := s.queueSelection(ids)
		if len(selected) == 0 {
			return
		}
		q := s.downloadQueue
		for i := len(q) - 2; i >= 0; i-- {
			if selected[q[i]] && !selected[q[i+1]] {
				q[i], q[i+1] = q[i+1], q[i]
			}
		}
		s.repackQueue()
		s.markQueueDirty()
	})
}

// TopTorrentsQueuePos moves the selected torrents to the queue head as a
// block, keeping relative order within both groups.
func (s *Session) TopTorrentsQueuePos(ids []domain.TorrentID) {
	_ = s.call(func() {
		selected := s.queueSelection(ids)
		if len(selected) == 0 {
			return
		}
		s.downloadQueue = stablePartition(s.downloadQueue, selected, true)
		s.repackQueue()
		s.markQueueDirty()
	})
}

// BottomTorrentsQueuePos moves the selected torrents to the queue tail as a
// block.
func (s *Session) BottomTorrentsQueuePos(ids []domain.TorrentID) {
	_ = s.call(func() {
		selected := s.queueSelection(ids)
		if len(selected) == 0 {
			return
		}
		s.downloadQueue = stablePartition(s.downloadQueue, selected, false)
		s.repackQueue()
		s.markQueueDirty()
	})
}

func stablePartition(q []domain.TorrentID, selected map[domain.TorrentID]bool, selectedFirst bool) []domain.TorrentID {
	head := make([]domain.TorrentID, 0, len(q))
	tail := make([]domain.TorrentID, 0, len(q))
	for _, id := range q {
		if selected[id] == selectedFirst {
			head = append(head, id)
		} else {
			tail = append(tail, id)
		}
	}
	return append(head, tail...)
}
