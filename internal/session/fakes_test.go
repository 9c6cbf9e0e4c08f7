package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"torrentsession/internal/domain"
)

// fakeEngine is a scriptable ports.EngineAdapter: commands are recorded and
// alerts are pushed by the test, then drained through the session's normal
// alert path.
type fakeEngine struct {
	mu     sync.Mutex
	alerts []domain.Alert

	created        []createCall
	merged         []mergeCall
	destroyed      []destroyCall
	moves          []moveCall
	resumeRequests []domain.TorrentID
	reconfigures   int
	lastSettings   domain.SessionSettings
	banned         []string

	createErr error
	mergeErr  error
	moveErr   error

	// autoResumeData makes RequestResumeData immediately queue a
	// save-resume-data alert carrying this payload.
	autoResumeData []byte
}

type createCall struct {
	desc   domain.TorrentDescriptor
	params domain.LoadTorrentParams
}

type mergeCall struct {
	id   domain.TorrentID
	data []byte
}

type destroyCall struct {
	id  domain.TorrentID
	opt domain.RemoveOption
}

type moveCall struct {
	id   domain.TorrentID
	path string
	mode domain.MoveStorageMode
}

func (e *fakeEngine) Start(context.Context) error { return nil }
func (e *fakeEngine) Close() error                { return nil }

func (e *fakeEngine) CreateTorrent(desc domain.TorrentDescriptor, params domain.LoadTorrentParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return e.createErr
	}
	e.created = append(e.created, createCall{desc: desc, params: params})
	return nil
}

func (e *fakeEngine) MergeTorrentMetadata(id domain.TorrentID, metainfo []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mergeErr != nil {
		return e.mergeErr
	}
	e.merged = append(e.merged, mergeCall{id: id, data: append([]byte(nil), metainfo...)})
	return nil
}

func (e *fakeEngine) DestroyTorrent(id domain.TorrentID, opt domain.RemoveOption) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = append(e.destroyed, destroyCall{id: id, opt: opt})
	return nil
}

func (e *fakeEngine) MoveStorage(id domain.TorrentID, path string, mode domain.MoveStorageMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.moveErr != nil {
		return e.moveErr
	}
	e.moves = append(e.moves, moveCall{id: id, path: path, mode: mode})
	return nil
}

func (e *fakeEngine) RequestResumeData(id domain.TorrentID) error {
	e.mu.Lock()
	e.resumeRequests = append(e.resumeRequests, id)
	auto := e.autoResumeData
	e.mu.Unlock()
	if auto != nil {
		e.push(domain.SaveResumeDataAlert{
			TorrentAlertScope: domain.TorrentAlertScope{ID: id},
			Data:              auto,
		})
	}
	return nil
}

func (e *fakeEngine) Reconfigure(settings domain.SessionSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconfigures++
	e.lastSettings = settings
	return nil
}

func (e *fakeEngine) BanIP(ip string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.banned = append(e.banned, ip)
	return nil
}

func (e *fakeEngine) PopAlerts(max int) []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.alerts)
	if max > 0 && n > max {
		n = max
	}
	out := make([]domain.Alert, n)
	copy(out, e.alerts[:n])
	e.alerts = e.alerts[n:]
	return out
}

func (e *fakeEngine) push(alerts ...domain.Alert) {
	e.mu.Lock()
	e.alerts = append(e.alerts, alerts...)
	e.mu.Unlock()
}

func (e *fakeEngine) createCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.created)
}

func (e *fakeEngine) mergeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.merged)
}

func (e *fakeEngine) moveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.moves)
}

// fakeResumeStorage keeps records in memory and counts operations.
type fakeResumeStorage struct {
	mu          sync.Mutex
	loadRecords []domain.ResumeRecord
	loadErr     error
	stored      map[domain.TorrentID]domain.ResumeRecord
	storeCount  int
	storeErr    error
	removed     []domain.TorrentID
}

func (f *fakeResumeStorage) LoadAll(context.Context) ([]domain.ResumeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ResumeRecord(nil), f.loadRecords...), f.loadErr
}

func (f *fakeResumeStorage) Store(_ context.Context, rec domain.ResumeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	if f.stored == nil {
		f.stored = make(map[domain.TorrentID]domain.ResumeRecord)
	}
	f.stored[rec.ID] = rec
	f.storeCount++
	return nil
}

func (f *fakeResumeStorage) Remove(_ context.Context, id domain.TorrentID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeResumeStorage) storedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeCount
}

func (f *fakeResumeStorage) removedIDs() []domain.TorrentID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TorrentID(nil), f.removed...)
}

// fakeTaxonomy persists categories and tags in memory.
type fakeTaxonomy struct {
	mu         sync.Mutex
	categories map[string]domain.CategoryOptions
	tags       []domain.Tag
	saves      int
}

func (f *fakeTaxonomy) LoadCategories(context.Context) (map[string]domain.CategoryOptions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.CategoryOptions, len(f.categories))
	for name, options := range f.categories {
		out[name] = options
	}
	return out, nil
}

func (f *fakeTaxonomy) SaveCategories(_ context.Context, categories map[string]domain.CategoryOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = categories
	f.saves++
	return nil
}

func (f *fakeTaxonomy) LoadTags(context.Context) ([]domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Tag(nil), f.tags...), nil
}

func (f *fakeTaxonomy) SaveTags(_ context.Context, tags []domain.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = tags
	return nil
}

func (f *fakeTaxonomy) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

func testSettings() domain.SessionSettings {
	settings := domain.DefaultSettings()
	// The ticker never fires during a test; drains are driven explicitly.
	settings.RefreshInterval = time.Hour
	settings.ShutdownTimeout = 200 * time.Millisecond
	return settings
}

func newTestSession(t *testing.T, engine *fakeEngine, storage *fakeResumeStorage, taxonomy *fakeTaxonomy, settings domain.SessionSettings) *Session {
	t.Helper()
	s := New(Config{
		Engine:   engine,
		Storage:  storage,
		Taxonomy: taxonomy,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Settings: settings,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func drainAlerts(s *Session) {
	_ = s.call(func() { s.readAlerts() })
}

func waitRestored(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.IsRestored() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session never reached restored state")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitEvent(t *testing.T, ch <-chan domain.Event, kind domain.EventKind) domain.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", kind)
			}
			if ev.Kind() == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("event %s never arrived", kind)
		}
	}
}

func testHash(seed byte) domain.InfoHash {
	return domain.InfoHash(strings.Repeat(string([]byte{seed}), 40))
}

// addActiveTorrent adds a torrent and walks it through engine confirmation so
// it lands in the registry.
func addActiveTorrent(t *testing.T, s *Session, engine *fakeEngine, hash domain.InfoHash, name string, params domain.AddTorrentParams) domain.TorrentID {
	t.Helper()
	desc := domain.TorrentDescriptor{Hash: hash}
	if err := s.AddTorrent(desc, params); err != nil {
		t.Fatalf("add torrent %s: %v", name, err)
	}
	id := hash.ToTorrentID()
	engine.push(domain.TorrentAddedAlert{
		TorrentAlertScope: domain.TorrentAlertScope{ID: id},
		InfoHash:          hash,
		Name:              name,
	})
	drainAlerts(s)
	if _, ok := s.Get(id); !ok {
		t.Fatalf("torrent %s did not materialize", name)
	}
	return id
}
