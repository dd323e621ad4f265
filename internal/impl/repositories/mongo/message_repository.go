package repositories_mongo

import (
	"context"
	"time"

	"github.com/parleychat/parley/internal/domain/entities"
	"github.com/parleychat/parley/internal/domain/errs"
	"github.com/parleychat/parley/internal/domain/interfaces"
	"github.com/parleychat/parley/internal/impl/markdown"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMongoMessageRepository(collection *mongo.Collection) *MongoMessageRepository {
	return &MongoMessageRepository{
		collection: collection,
	}
}

// PersistMessage writes the message and replaces its client-generated id with
// the storage-assigned one. User content is sanitized on the way in, so the
// stored copy may differ from the optimistic copy.
func (r *MongoMessageRepository) PersistMessage(ctx context.Context, message *entities.Message) error {
	if message.ChatID == "" {
		return errs.ValidationErrorf("message chat ID is required")
	}

	message.ID = primitive.NewObjectID().Hex()
	message.CreatedAt = time.Now()
	if message.Role == entities.RoleUser {
		message.Content = markdown.Sanitize(message.Content)
	}

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		return errs.InternalErrorf("failed to persist message: %v", err)
	}

	return nil
}

// FetchTail returns the k most recent messages for a chat, ordered oldest to
// newest within the returned slice.
func (r *MongoMessageRepository) FetchTail(ctx context.Context, chatID string, k int) ([]*entities.Message, error) {
	if k <= 0 {
		return nil, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(k))
	cursor, err := r.collection.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, errs.InternalErrorf("failed to fetch message tail: %v", err)
	}
	defer cursor.Close(ctx)

	var newestFirst []*entities.Message
	for cursor.Next(ctx) {
		var message entities.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, errs.InternalErrorf("failed to decode message: %v", err)
		}
		newestFirst = append(newestFirst, &message)
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.InternalErrorf("failed to fetch message tail: %v", err)
	}

	tail := make([]*entities.Message, len(newestFirst))
	for i, msg := range newestFirst {
		tail[len(tail)-1-i] = msg
	}
	return tail, nil
}

func (r *MongoMessageRepository) ListMessages(ctx context.Context, chatID string) ([]*entities.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, errs.InternalErrorf("failed to list messages: %v", err)
	}
	defer cursor.Close(ctx)

	var messages []*entities.Message
	for cursor.Next(ctx) {
		var message entities.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, errs.InternalErrorf("failed to decode message: %v", err)
		}
		messages = append(messages, &message)
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.InternalErrorf("failed to list messages: %v", err)
	}

	return messages, nil
}

// DeleteMessagesFrom removes every message at or after the given timestamp.
// Used when an edit truncates the conversation at the edited point.
func (r *MongoMessageRepository) DeleteMessagesFrom(ctx context.Context, chatID string, from time.Time) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"chat_id":    chatID,
		"created_at": bson.M{"$gte": from},
	})
	if err != nil {
		return errs.InternalErrorf("failed to delete messages: %v", err)
	}
	return nil
}

var _ interfaces.MessageRepository = (*MongoMessageRepository)(nil)
