package ports

import (
	"context"

	"torrentsession/internal/domain"
)

// ResumeStorage persists one record per torrent across restarts. The
// orchestrator only calls it from worker goroutines, never from the control
// loop.
type ResumeStorage interface {
	LoadAll(ctx context.Context) ([]domain.ResumeRecord, error)
	Store(ctx context.Context, rec domain.ResumeRecord) error
	Remove(ctx context.Context, id domain.TorrentID) error
}

// TaxonomyStorage persists the category map and the tag set wholesale,
// mirroring how the orchestrator owns them in memory.
type TaxonomyStorage interface {
	LoadCategories(ctx context.Context) (map[string]domain.CategoryOptions, error)
	SaveCategories(ctx context.Context, categories map[string]domain.CategoryOptions) error
	LoadTags(ctx context.Context) ([]domain.Tag, error)
	SaveTags(ctx context.Context, tags []domain.Tag) error
}
