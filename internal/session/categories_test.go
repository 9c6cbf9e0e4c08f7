package session

import (
	"errors"
	"reflect"
	"testing"

	"torrentsession/internal/domain"
)

func TestAddCategoryValidation(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	for _, name := range []string{"", "a//b", "/a", "a/", " "} {
		if err := s.AddCategory(name, domain.CategoryOptions{}); !errors.Is(err, domain.ErrInvalidName) {
			t.Fatalf("AddCategory(%q) = %v, want ErrInvalidName", name, err)
		}
	}

	// Hierarchical names need subcategories enabled.
	if err := s.AddCategory("a/b", domain.CategoryOptions{}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("hierarchical name accepted with subcategories disabled: %v", err)
	}

	if err := s.AddCategory("movies", domain.CategoryOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddCategory("movies", domain.CategoryOptions{}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate add = %v, want ErrAlreadyExists", err)
	}
}

func TestAddCategoryCreatesAncestors(t *testing.T) {
	taxonomy := &fakeTaxonomy{}
	settings := testSettings()
	settings.SubcategoriesEnabled = true
	s := newTestSession(t, &fakeEngine{}, &fakeResumeStorage{}, taxonomy, settings)
	waitRestored(t, s)

	events, cancel := s.Events(32)
	defer cancel()

	if err := s.AddCategory("a/b/c", domain.CategoryOptions{SavePath: "/leaf"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, want := range []string{"a", "a/b", "a/b/c"} {
		ev := waitEvent(t, events, domain.EventCategoryAdded).(domain.CategoryAdded)
		if ev.Name != want {
			t.Fatalf("added event = %q, want %q", ev.Name, want)
		}
	}
	if got := s.Categories(); !reflect.DeepEqual(got, []string{"a", "a/b", "a/b/c"}) {
		t.Fatalf("categories = %v", got)
	}
	options, ok := s.CategoryOptionsOf("a/b/c")
	if !ok || options.SavePath != "/leaf" {
		t.Fatalf("leaf options = %+v, ok=%v", options, ok)
	}
	waitFor(t, "taxonomy persisted", func() bool { return taxonomy.saveCount() >= 1 })
}

func TestRemoveCategoryCascades(t *testing.T) {
	engine := &fakeEngine{}
	settings := testSettings()
	settings.SubcategoriesEnabled = true
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, settings)
	waitRestored(t, s)

	if err := s.AddCategory("a/b", domain.CategoryOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	id := addActiveTorrent(t, s, engine, testHash('a'), "member", domain.AddTorrentParams{
		Category: "a/b",
	})

	events, cancel := s.Events(64)
	defer cancel()

	if err := s.RemoveCategory("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ev := waitEvent(t, events, domain.EventTorrentCategoryChanged).(domain.TorrentCategoryChanged)
	if ev.ID != id || ev.OldCategory != "a/b" || ev.Category != "" {
		t.Fatalf("category-changed event = %+v", ev)
	}
	waitEvent(t, events, domain.EventCategoryRemoved)

	if got := s.Categories(); len(got) != 0 {
		t.Fatalf("categories after cascade = %v", got)
	}
	info, _ := s.Get(id)
	if info.Category != "" {
		t.Fatalf("member category = %q, want cleared", info.Category)
	}
	// The automatically managed member relocates to the default save path.
	waitFor(t, "relocation move", func() bool { return engine.moveCount() == 1 })
	engine.mu.Lock()
	job := engine.moves[0]
	engine.mu.Unlock()
	if job.path != s.Settings().SavePath {
		t.Fatalf("relocation path = %q, want session default", job.path)
	}
}

func TestRemoveParentBlockedWhenSubcategoriesDisabled(t *testing.T) {
	taxonomy := &fakeTaxonomy{categories: map[string]domain.CategoryOptions{
		"a":   {},
		"a/b": {},
	}}
	s := newTestSession(t, &fakeEngine{}, &fakeResumeStorage{}, taxonomy, testSettings())
	waitRestored(t, s)

	if err := s.RemoveCategory("a"); !errors.Is(err, domain.ErrHasSubcategories) {
		t.Fatalf("remove parent = %v, want ErrHasSubcategories", err)
	}
	if err := s.RemoveCategory("a/b"); err != nil {
		t.Fatalf("remove leaf: %v", err)
	}
	if err := s.RemoveCategory("a"); err != nil {
		t.Fatalf("remove parent after leaf: %v", err)
	}
}

func TestRemoveUnknownCategory(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	if err := s.RemoveCategory("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestEditCategoryRelocatesManagedMembers(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	if err := s.AddCategory("films", domain.CategoryOptions{}); err != nil {
		t.Fatalf("add category: %v", err)
	}
	id := addActiveTorrent(t, s, engine, testHash('b'), "member", domain.AddTorrentParams{
		Category: "films",
	})

	events, cancel := s.Events(32)
	defer cancel()

	if err := s.EditCategory("films", domain.CategoryOptions{SavePath: "/media/films"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	waitEvent(t, events, domain.EventCategoryOptionsChanged)
	waitFor(t, "relocation move", func() bool { return engine.moveCount() == 1 })
	engine.mu.Lock()
	job := engine.moves[0]
	engine.mu.Unlock()
	if job.id != id || job.path != "/media/films" {
		t.Fatalf("relocation job = %+v", job)
	}

	if err := s.EditCategory("ghost", domain.CategoryOptions{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("edit unknown = %v, want ErrNotFound", err)
	}
}

func TestSetTorrentCategory(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	if err := s.AddCategory("books", domain.CategoryOptions{}); err != nil {
		t.Fatalf("add category: %v", err)
	}
	id := addActiveTorrent(t, s, engine, testHash('c'), "t", domain.AddTorrentParams{})

	if err := s.SetTorrentCategory(id, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown category = %v, want ErrNotFound", err)
	}
	if err := s.SetTorrentCategory(id, "books"); err != nil {
		t.Fatalf("set: %v", err)
	}
	info, _ := s.Get(id)
	if info.Category != "books" {
		t.Fatalf("category = %q", info.Category)
	}
	// Clearing works with "".
	if err := s.SetTorrentCategory(id, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	info, _ = s.Get(id)
	if info.Category != "" {
		t.Fatalf("category after clear = %q", info.Category)
	}
}

func TestTagLifecycle(t *testing.T) {
	taxonomy := &fakeTaxonomy{}
	s := newTestSession(t, &fakeEngine{}, &fakeResumeStorage{}, taxonomy, testSettings())
	waitRestored(t, s)

	if !s.AddTag("linux") {
		t.Fatalf("fresh tag not added")
	}
	if s.AddTag("linux") {
		t.Fatalf("duplicate tag reported as added")
	}
	for _, bad := range []domain.Tag{"", " padded", "a,b"} {
		if s.AddTag(bad) {
			t.Fatalf("invalid tag %q accepted", bad)
		}
	}
	if !s.HasTag("linux") {
		t.Fatalf("tag lookup failed")
	}
	if s.RemoveTag("ghost") {
		t.Fatalf("removing unknown tag reported as changed")
	}
	if !s.RemoveTag("linux") {
		t.Fatalf("removing known tag reported as no-op")
	}
	if s.HasTag("linux") {
		t.Fatalf("tag survived removal")
	}
}

func TestTorrentTagsRegisterAndStrip(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestSession(t, engine, &fakeResumeStorage{}, &fakeTaxonomy{}, testSettings())
	waitRestored(t, s)

	id := addActiveTorrent(t, s, engine, testHash('d'), "tagged", domain.AddTorrentParams{})

	// One invalid tag fails the whole call without partial application.
	err := s.AddTorrentTags(id, []domain.Tag{"good", "bad,comma"})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("invalid batch = %v, want ErrInvalidName", err)
	}
	info, _ := s.Get(id)
	if len(info.Tags) != 0 {
		t.Fatalf("partial tag application: %v", info.Tags)
	}

	if err := s.AddTorrentTags(id, []domain.Tag{"iso", "linux"}); err != nil {
		t.Fatalf("add tags: %v", err)
	}
	if !s.HasTag("iso") || !s.HasTag("linux") {
		t.Fatalf("torrent tags not registered at session level")
	}
	info, _ = s.Get(id)
	if !reflect.DeepEqual(info.Tags, []domain.Tag{"iso", "linux"}) {
		t.Fatalf("torrent tags = %v", info.Tags)
	}

	// Detaching from the torrent keeps the session tag.
	if err := s.RemoveTorrentTags(id, []domain.Tag{"iso"}); err != nil {
		t.Fatalf("remove torrent tags: %v", err)
	}
	info, _ = s.Get(id)
	if !reflect.DeepEqual(info.Tags, []domain.Tag{"linux"}) {
		t.Fatalf("torrent tags after detach = %v", info.Tags)
	}
	if !s.HasTag("iso") {
		t.Fatalf("session tag removed by torrent detach")
	}

	// Removing the session tag strips it from the torrent.
	events, cancel := s.Events(32)
	defer cancel()
	if !s.RemoveTag("linux") {
		t.Fatalf("remove session tag")
	}
	waitEvent(t, events, domain.EventTorrentTagRemoved)
	info, _ = s.Get(id)
	if len(info.Tags) != 0 {
		t.Fatalf("torrent tags after session removal = %v", info.Tags)
	}
}
