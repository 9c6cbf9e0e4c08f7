package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"torrentsession/internal/domain"
)

// Categories returns all category names, sorted.
func (s *Session) Categories() []string {
	var names []string
	_ = s.call(func() {
		names = make([]string, 0, len(s.categories))
		for name := range s.categories {
			names = append(names, name)
		}
	})
	sort.Strings(names)
	return names
}

// CategoryOptionsOf returns a category's options.
func (s *Session) CategoryOptionsOf(name string) (domain.CategoryOptions, bool) {
	var options domain.CategoryOptions
	var ok bool
	_ = s.call(func() {
		options, ok = s.categories[name]
	})
	return options, ok
}

// AddCategory registers a category. With subcategories enabled, missing
// ancestors of a hierarchical name are created implicitly, each with its own
// added event. Adding an existing category fails.
func (s *Session) AddCategory(name string, options domain.CategoryOptions) error {
	var result error
	err := s.call(func() {
		result = s.addCategory(name, options)
	})
	if err != nil {
		return err
	}
	return result
}

func (s *Session) addCategory(name string, options domain.CategoryOptions) error {
	if !domain.IsValidCategoryName(name) {
		return domain.ErrInvalidName
	}
	if strings.Contains(name, "/") && !s.settings.SubcategoriesEnabled {
		return domain.ErrInvalidName
	}
	if _, ok := s.categories[name]; ok {
		return domain.ErrAlreadyExists
	}
	expanded := domain.ExpandCategory(name)
	for _, ancestor := range expanded[:len(expanded)-1] {
		if _, ok := s.categories[ancestor]; ok {
			continue
		}
		s.categories[ancestor] = domain.CategoryOptions{}
		s.emit(domain.CategoryAdded{Name: ancestor})
	}
	s.categories[name] = options
	s.emit(domain.CategoryAdded{Name: name})
	s.persistTaxonomy()
	return nil
}

// EditCategory updates a category's options. Torrents in the category that
// follow automatic management are relocated to the new effective path.
func (s *Session) EditCategory(name string, options domain.CategoryOptions) error {
	var result error
	err := s.call(func() {
		current, ok := s.categories[name]
		if !ok {
			result = domain.ErrNotFound
			return
		}
		if current == options {
			return
		}
		s.categories[name] = options
		s.emit(domain.CategoryOptionsChanged{Name: name})
		s.relocateCategoryMembers(name)
		s.persistTaxonomy()
	})
	if err != nil {
		return err
	}
	return result
}

// RemoveCategory removes a category. With subcategories enabled the removal
// cascades over all descendants; with them disabled a parent cannot be
// removed while children exist. Member torrents are reset to no category.
func (s *Session) RemoveCategory(name string) error {
	var result error
	err := s.call(func() {
		result = s.removeCategory(name)
	})
	if err != nil {
		return err
	}
	return result
}

func (s *Session) removeCategory(name string) error {
	if _, ok := s.categories[name]; !ok {
		return domain.ErrNotFound
	}
	var doomed []string
	for existing := range s.categories {
		if domain.IsSubcategory(name, existing) {
			doomed = append(doomed, existing)
		}
	}
	if len(doomed) > 0 && !s.settings.SubcategoriesEnabled {
		return domain.ErrHasSubcategories
	}
	doomed = append(doomed, name)
	sort.Strings(doomed)

	doomedSet := make(map[string]struct{}, len(doomed))
	for _, category := range doomed {
		doomedSet[category] = struct{}{}
	}
	for _, t := range s.torrents {
		if _, gone := doomedSet[t.category]; !gone {
			continue
		}
		old := t.category
		t.category = ""
		s.markDirty(t.id)
		s.emit(domain.TorrentCategoryChanged{ID: t.id, OldCategory: old, Category: ""})
		if t.autoTMM {
			s.enqueueMove(moveStorageJob{
				id:   t.id,
				path: s.settings.SavePath,
				mode: domain.MoveStorageOverwrite,
			})
		}
	}
	for _, category := range doomed {
		delete(s.categories, category)
		s.emit(domain.CategoryRemoved{Name: category})
	}
	s.persistTaxonomy()
	return nil
}

// SetTorrentCategory assigns a torrent to an existing category ("" clears
// it). Automatically managed torrents follow the category path.
func (s *Session) SetTorrentCategory(id domain.TorrentID, category string) error {
	var result error
	err := s.call(func() {
		t, ok := s.torrents[id]
		if !ok {
			result = domain.ErrNotFound
			return
		}
		if category != "" {
			if _, ok := s.categories[category]; !ok {
				result = domain.ErrNotFound
				return
			}
		}
		if t.category == category {
			return
		}
		old := t.category
		t.category = category
		s.markDirty(id)
		s.emit(domain.TorrentCategoryChanged{ID: id, OldCategory: old, Category: category})
		if t.autoTMM {
			s.enqueueMove(moveStorageJob{
				id:   id,
				path: s.categoryPath(category),
				mode: domain.MoveStorageOverwrite,
			})
		}
	})
	if err != nil {
		return err
	}
	return result
}

// relocateCategoryMembers re-derives the save path of every automatically
// managed torrent in the category. Loop only.
func (s *Session) relocateCategoryMembers(category string) {
	path := s.categoryPath(category)
	for _, t := range s.torrents {
		if t.category != category || !t.autoTMM {
			continue
		}
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

// TagsList returns all session tags, sorted.
func (s *Session) TagsList() []domain.Tag {
	var tags []domain.Tag
	_ = s.call(func() {
		tags = make([]domain.Tag, 0, len(s.tags))
		for tag := range s.tags {
			tags = append(tags, tag)
		}
	})
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (s *Session) HasTag(tag domain.Tag) bool {
	var ok bool
	_ = s.call(func() {
		_, ok = s.tags[tag]
	})
	return ok
}

// AddTag registers a session-level tag. Reports whether anything changed:
// invalid or already-present tags are a no-op.
func (s *Session) AddTag(tag domain.Tag) bool {
	var changed bool
	_ = s.call(func() {
		changed = s.addTag(tag)
		if changed {
			s.persistTaxonomy()
		}
	})
	return changed
}

func (s *Session) addTag(tag domain.Tag) bool {
	if !tag.IsValid() {
		return false
	}
	if _, ok := s.tags[tag]; ok {
		return false
	}
	s.tags[tag] = struct{}{}
	s.emit(domain.TagAdded{Tag: tag})
	return true
}

// RemoveTag drops a tag from the session and strips it from every torrent
// carrying it. Reports whether anything changed.
func (s *Session) RemoveTag(tag domain.Tag) bool {
	var changed bool
	_ = s.call(func() {
		if _, ok := s.tags[tag]; !ok {
			return
		}
		for _, t := range s.torrents {
			if _, carries := t.tags[tag]; !carries {
				continue
			}
			delete(t.tags, tag)
			s.markDirty(t.id)
			s.emit(domain.TorrentTagRemoved{ID: t.id, Tag: tag})
		}
		delete(s.tags, tag)
		s.emit(domain.TagRemoved{Tag: tag})
		s.persistTaxonomy()
		changed = true
	})
	return changed
}

// AddTorrentTags attaches tags to a torrent, registering unknown tags at the
// session level on the fly. Invalid tags fail the whole call.
func (s *Session) AddTorrentTags(id domain.TorrentID, tags []domain.Tag) error {
	var result error
	err := s.call(func() {
		t, ok := s.torrents[id]
		if !ok {
			result = domain.ErrNotFound
			return
		}
		for _, tag := range tags {
			if !tag.IsValid() {
				result = domain.ErrInvalidName
				return
			}
		}
		registered := false
		for _, tag := range tags {
			if s.addTag(tag) {
				registered = true
			}
			if _, carries := t.tags[tag]; carries {
				continue
			}
			t.tags[tag] = struct{}{}
			s.markDirty(id)
			s.emit(domain.TorrentTagAdded{ID: id, Tag: tag})
		}
		if registered {
			s.persistTaxonomy()
		}
	})
	if err != nil {
		return err
	}
	return result
}

// RemoveTorrentTags detaches tags from a torrent; the session-level tag set
// is unaffected.
func (s *Session) RemoveTorrentTags(id domain.TorrentID, tags []domain.Tag) error {
	var result error
	err := s.call(func() {
		t, ok := s.torrents[id]
		if !ok {
			result = domain.ErrNotFound
			return
		}
		for _, tag := range tags {
			if _, carries := t.tags[tag]; !carries {
				continue
			}
			delete(t.tags, tag)
			s.markDirty(id)
			s.emit(domain.TorrentTagRemoved{ID: id, Tag: tag})
		}
	})
	if err != nil {
		return err
	}
	return result
}

// persistTaxonomy snapshots the category map and tag set and writes them on
// a worker. Loop only.
func (s *Session) persistTaxonomy() {
	if s.taxonomy == nil {
		return
	}
	categories := make(map[string]domain.CategoryOptions, len(s.categories))
	for name, options := range s.categories {
		categories[name] = options
	}
	tags := make([]domain.Tag, 0, len(s.tags))
	for tag := range s.tags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	go func() {
		ctx := context.Background()
		if err := s.taxonomy.SaveCategories(ctx, categories); err != nil {
			s.logger.Warn("persisting categories failed", slog.String("error", err.Error()))
		}
		if err := s.taxonomy.SaveTags(ctx, tags); err != nil {
			s.logger.Warn("persisting tags failed", slog.String("error", err.Error()))
		}
	}()
}
