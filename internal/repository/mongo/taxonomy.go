package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentsession/internal/domain"
)

// TaxonomyRepository stores the category map and tag set as two singleton
// documents, mirroring how the session owns them in memory.
type TaxonomyRepository struct {
	collection *mongo.Collection
}

const (
	categoriesDocID = "categories"
	tagsDocID       = "tags"
)

type categoryEntryDoc struct {
	Name     string `bson:"name"`
	SavePath string `bson:"savePath,omitempty"`
}

type categoriesDoc struct {
	ID         string             `bson:"_id"`
	Categories []categoryEntryDoc `bson:"categories"`
}

type tagsDoc struct {
	ID   string   `bson:"_id"`
	Tags []string `bson:"tags"`
}

func NewTaxonomyRepository(client *mongo.Client, dbName, collectionName string) *TaxonomyRepository {
	return &TaxonomyRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func (r *TaxonomyRepository) LoadCategories(ctx context.Context) (map[string]domain.CategoryOptions, error) {
	var doc categoriesDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": categoriesDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return map[string]domain.CategoryOptions{}, nil
	}
	if err != nil {
		return nil, err
	}
	categories := make(map[string]domain.CategoryOptions, len(doc.Categories))
	for _, entry := range doc.Categories {
		categories[entry.Name] = domain.CategoryOptions{SavePath: entry.SavePath}
	}
	return categories, nil
}

func (r *TaxonomyRepository) SaveCategories(ctx context.Context, categories map[string]domain.CategoryOptions) error {
	entries := make([]categoryEntryDoc, 0, len(categories))
	for name, opts := range categories {
		entries = append(entries, categoryEntryDoc{Name: name, SavePath: opts.SavePath})
	}
	doc := categoriesDoc{ID: categoriesDocID, Categories: entries}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": categoriesDocID}, doc,
		options.Replace().SetUpsert(true))
	return err
}

func (r *TaxonomyRepository) LoadTags(ctx context.Context) ([]domain.Tag, error) {
	var doc tagsDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": tagsDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tags := make([]domain.Tag, 0, len(doc.Tags))
	for _, tag := range doc.Tags {
		tags = append(tags, domain.Tag(tag))
	}
	return tags, nil
}

func (r *TaxonomyRepository) SaveTags(ctx context.Context, tags []domain.Tag) error {
	raw := make([]string, 0, len(tags))
	for _, tag := range tags {
		raw = append(raw, string(tag))
	}
	doc := tagsDoc{ID: tagsDocID, Tags: raw}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": tagsDocID}, doc,
		options.Replace().SetUpsert(true))
	return err
}
