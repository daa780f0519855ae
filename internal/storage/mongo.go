package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"previewd/internal/types"
)

// Custom error types for storage operations
var (
	ErrPreviewNotFound = errors.New("preview session not found")
	ErrDatabaseNil     = errors.New("database is nil")
	ErrInvalidPreview  = errors.New("invalid preview session data")
)

// PreviewSession is the persisted record of a project's preview lifecycle.
type PreviewSession struct {
	ProjectID   string    `bson:"project_id"`
	ContainerID string    `bson:"container_id"`
	Status      string    `bson:"status"`
	URL         string    `bson:"url,omitempty"`
	CreatedAt   time.Time `bson:"created_at,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty"`
}

// markerDoc wraps a StreamMarker with its project key.
type markerDoc struct {
	ProjectID string             `bson:"project_id"`
	Marker    types.StreamMarker `bson:"marker"`
	WrittenAt time.Time          `bson:"written_at"`
}

func GetMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

// UpsertPreview records the current lifecycle state for a project's
// preview. One record per project.
func UpsertPreview(ctx context.Context, db *mongo.Database, s *PreviewSession) error {
	if db == nil {
		return fmt.Errorf("%w", ErrDatabaseNil)
	}

	if s == nil {
		return fmt.Errorf("%w: preview session cannot be nil", ErrInvalidPreview)
	}

	if s.ProjectID == "" {
		return fmt.Errorf("%w: project ID cannot be empty", ErrInvalidPreview)
	}

	s.UpdatedAt = time.Now()

	_, err := db.Collection("previews").UpdateOne(
		ctx,
		bson.M{"project_id": s.ProjectID},
		bson.M{
			"$set":         s,
			"$setOnInsert": bson.M{"created_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preview session: %w", err)
	}

	return nil
}

func GetPreview(ctx context.Context, db *mongo.Database, projectID string) (*PreviewSession, error) {
	if db == nil {
		return nil, fmt.Errorf("%w", ErrDatabaseNil)
	}

	if projectID == "" {
		return nil, fmt.Errorf("%w: project ID cannot be empty", ErrInvalidPreview)
	}

	var session PreviewSession
	err := db.Collection("previews").FindOne(ctx, bson.M{"project_id": projectID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: %s", ErrPreviewNotFound, projectID)
		}
		return nil, fmt.Errorf("failed to get preview session: %w", err)
	}

	return &session, nil
}

func DeletePreview(ctx context.Context, db *mongo.Database, projectID string) error {
	if db == nil {
		return fmt.Errorf("%w", ErrDatabaseNil)
	}

	if projectID == "" {
		return fmt.Errorf("%w: project ID cannot be empty", ErrInvalidPreview)
	}

	_, err := db.Collection("previews").DeleteOne(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return fmt.Errorf("failed to delete preview session: %w", err)
	}

	return nil
}

// ListPreviews returns all preview sessions, optionally filtered by
// status.
func ListPreviews(ctx context.Context, db *mongo.Database, status string) ([]*PreviewSession, error) {
	if db == nil {
		return nil, fmt.Errorf("%w", ErrDatabaseNil)
	}

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	cursor, err := db.Collection("previews").Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list preview sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*PreviewSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode preview sessions: %w", err)
	}

	return sessions, nil
}

// ListStalePreviews returns serving sessions not updated since the cutoff.
func ListStalePreviews(ctx context.Context, db *mongo.Database, cutoff time.Time) ([]*PreviewSession, error) {
	if db == nil {
		return nil, fmt.Errorf("%w", ErrDatabaseNil)
	}

	cursor, err := db.Collection("previews").Find(ctx, bson.M{
		"status":     bson.M{"$nin": bson.A{"stopped", "failed"}},
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stale preview sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*PreviewSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode stale preview sessions: %w", err)
	}

	return sessions, nil
}

// MarkerStore persists stream markers in Mongo. Take deletes the marker
// in the same operation that reads it, so each marker is observed at most
// once even across replicas.
type MarkerStore struct {
	db *mongo.Database
}

func NewMarkerStore(db *mongo.Database) *MarkerStore {
	return &MarkerStore{db: db}
}

func (s *MarkerStore) PutMarker(ctx context.Context, projectID string, marker types.StreamMarker) error {
	if s.db == nil {
		return fmt.Errorf("%w", ErrDatabaseNil)
	}

	if projectID == "" {
		return fmt.Errorf("%w: project ID cannot be empty", ErrInvalidPreview)
	}

	doc := markerDoc{ProjectID: projectID, Marker: marker, WrittenAt: time.Now()}
	_, err := s.db.Collection("stream_markers").UpdateOne(
		ctx,
		bson.M{"project_id": projectID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store stream marker: %w", err)
	}

	return nil
}

func (s *MarkerStore) TakeMarker(ctx context.Context, projectID string) (*types.StreamMarker, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w", ErrDatabaseNil)
	}

	if projectID == "" {
		return nil, fmt.Errorf("%w: project ID cannot be empty", ErrInvalidPreview)
	}

	var doc markerDoc
	err := s.db.Collection("stream_markers").FindOneAndDelete(ctx, bson.M{"project_id": projectID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to take stream marker: %w", err)
	}

	return &doc.Marker, nil
}
