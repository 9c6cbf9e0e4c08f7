// Package mongo persists the session's resume records and taxonomy in
// MongoDB. One document per torrent keeps writes independent: a failed save
// for one torrent never blocks another's.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentsession/internal/domain"
)

type ResumeRepository struct {
	collection *mongo.Collection
}

type resumeDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Magnet        string    `bson:"magnet,omitempty"`
	Category      string    `bson:"category,omitempty"`
	Tags          []string  `bson:"tags,omitempty"`
	SavePath      string    `bson:"savePath"`
	UseAutoTMM    bool      `bson:"useAutoTMM"`
	Stopped       bool      `bson:"stopped"`
	StopCondition string    `bson:"stopCondition,omitempty"`
	QueuePosition int       `bson:"queuePosition"`
	Trackers      []string  `bson:"trackers,omitempty"`
	EngineState   []byte    `bson:"engineState,omitempty"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

func NewResumeRepository(client *mongo.Client, dbName, collectionName string) *ResumeRepository {
	return &ResumeRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *ResumeRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "queuePosition", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// LoadAll returns every persisted record in queue order; unqueued torrents
// come last.
func (r *ResumeRepository) LoadAll(ctx context.Context) ([]domain.ResumeRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "queuePosition", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.ResumeRecord
	for cursor.Next(ctx) {
		var doc resumeDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, fromResumeDoc(doc))
	}
	return records, cursor.Err()
}

func (r *ResumeRepository) Store(ctx context.Context, rec domain.ResumeRecord) error {
	doc := toResumeDoc(rec)
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *ResumeRepository) Remove(ctx context.Context, id domain.TorrentID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ResumeRepository) Get(ctx context.Context, id domain.TorrentID) (domain.ResumeRecord, error) {
	var doc resumeDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ResumeRecord{}, domain.ErrNotFound
		}
		return domain.ResumeRecord{}, err
	}
	return fromResumeDoc(doc), nil
}

func toResumeDoc(rec domain.ResumeRecord) resumeDoc {
	return resumeDoc{
		ID:            string(rec.ID),
		Name:          rec.Name,
		Magnet:        rec.Magnet,
		Category:      rec.Category,
		Tags:          rec.Tags,
		SavePath:      rec.SavePath,
		UseAutoTMM:    rec.UseAutoTMM,
		Stopped:       rec.Stopped,
		StopCondition: string(rec.StopCondition),
		QueuePosition: rec.QueuePosition,
		Trackers:      rec.Trackers,
		EngineState:   rec.EngineState,
		UpdatedAt:     rec.UpdatedAt.UTC(),
	}
}

func fromResumeDoc(doc resumeDoc) domain.ResumeRecord {
	return domain.ResumeRecord{
		ID:            domain.TorrentID(doc.ID),
		Name:          doc.Name,
		Magnet:        doc.Magnet,
		Category:      doc.Category,
		Tags:          doc.Tags,
		SavePath:      doc.SavePath,
		UseAutoTMM:    doc.UseAutoTMM,
		Stopped:       doc.Stopped,
		StopCondition: domain.StopCondition(doc.StopCondition),
		QueuePosition: doc.QueuePosition,
		Trackers:      doc.Trackers,
		EngineState:   doc.EngineState,
		UpdatedAt:     doc.UpdatedAt,
	}
}
