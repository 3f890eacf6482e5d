package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/davitran/docchat-be/types"
)

type DocumentRepo interface {
	CreateDocument(ctx context.Context, doc *types.Document) (string, error)
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	// ListDocuments returns documents without content and chunks.
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// TryMarkProcessing transitions the document into the processing state. It
	// succeeds only when no other pass is running, or when the running pass has
	// not reported progress since staleBefore (unix seconds). Acts as the
	// document-level mutex for embedding passes.
	TryMarkProcessing(ctx context.Context, id string, staleBefore int64) (bool, error)
	SetEmbeddingStatus(ctx context.Context, id, status, errMsg string) error
	SetEmbeddingProgress(ctx context.Context, id string, progress float64) error
	// SetChunkEmbeddings persists embeddings for the given chunk indexes.
	SetChunkEmbeddings(ctx context.Context, id string, embeddings map[int][]float32) error
}

type documentRepo struct {
	collection *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) DocumentRepo {
	collection := db.Collection("documents")
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
		{Keys: bson.D{{Key: "embedding_status", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
		// best-effort; queries still work without the indexes
		log.Warn().Err(err).Str("collection", "documents").Msg("failed to create indexes")
	}
	return &documentRepo{collection: collection}
}

func (r *documentRepo) CreateDocument(ctx context.Context, doc *types.Document) (string, error) {
	doc.UploadedAt = time.Now().Unix()
	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	doc.ID = oid.Hex()
	return doc.ID, nil
}

func (r *documentRepo) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	var doc types.Document
	err = r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	opts := options.Find().
		SetProjection(bson.M{"content": 0, "chunks": 0}).
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*types.Document
	for cursor.Next(ctx) {
		var doc types.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, cursor.Err()
}

func (r *documentRepo) DeleteDocument(ctx context.Context, id string) error {
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *documentRepo) TryMarkProcessing(ctx context.Context, id string, staleBefore int64) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, types.ErrValidation
	}
	filter := bson.M{
		"_id": oid,
		"$or": []bson.M{
			{"embedding_status": bson.M{"$ne": types.EMBEDDING_STATUS_PROCESSING}},
			{"embedding_updated_at": bson.M{"$lt": staleBefore}},
		},
	}
	update := bson.M{"$set": bson.M{
		"embedding_status":     types.EMBEDDING_STATUS_PROCESSING,
		"embedding_progress":   float64(0),
		"embedding_error":      "",
		"embedding_updated_at": time.Now().Unix(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *documentRepo) SetEmbeddingStatus(ctx context.Context, id, status, errMsg string) error {
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"embedding_status":     status,
		"embedding_error":      errMsg,
		"embedding_updated_at": time.Now().Unix(),
	}}
	if status == types.EMBEDDING_STATUS_COMPLETED {
		update["$set"].(bson.M)["embedding_progress"] = float64(100)
	}
	_, err = r.collection.UpdateOne(ctx, filter, update)
	return err
}

func (r *documentRepo) SetEmbeddingProgress(ctx context.Context, id string, progress float64) error {
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"embedding_progress":   progress,
		"embedding_updated_at": time.Now().Unix(),
	}})
	return err
}

func (r *documentRepo) SetChunkEmbeddings(ctx context.Context, id string, embeddings map[int][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	set := bson.M{}
	for idx, emb := range embeddings {
		set[fmt.Sprintf("chunks.%d.embedding", idx)] = emb
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}

func idFilter(id string) (bson.M, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, types.ErrValidation
	}
	return bson.M{"_id": oid}, nil
}
