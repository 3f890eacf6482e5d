package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/davitran/docchat-be/types"
)

type ConversationRepo interface {
	GetByDocument(ctx context.Context, documentID string) (*types.Conversation, error)
	AppendMessages(ctx context.Context, documentID string, messages []types.ChatMessage) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

type conversationRepo struct {
	collection *mongo.Collection
}

func NewConversationRepo(db *mongo.Database) ConversationRepo {
	collection := db.Collection("conversations")
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
		log.Warn().Err(err).Str("collection", "conversations").Msg("failed to create indexes")
	}
	return &conversationRepo{collection: collection}
}

func (r *conversationRepo) GetByDocument(ctx context.Context, documentID string) (*types.Conversation, error) {
	var conv types.Conversation
	err := r.collection.FindOne(ctx, bson.M{"document_id": documentID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) AppendMessages(ctx context.Context, documentID string, messages []types.ChatMessage) error {
	now := time.Now().Unix()
	update := bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": messages}},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"document_id": documentID, "created_at": now},
	}
	opts := options.UpdateOne().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"document_id": documentID}, update, opts)
	return err
}

func (r *conversationRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}
