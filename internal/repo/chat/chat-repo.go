package chat_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThinkYuvraj/Sociale/internal/entity"
	app_error "github.com/ThinkYuvraj/Sociale/internal/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const chatsCollection = "chats"

var withoutMessages = bson.M{"messages": 0}

type ChatRepo struct {
	chats *mongo.Collection
}

func NewChatRepo(db *mongo.Database) *ChatRepo {
	return &ChatRepo{
		chats: db.Collection(chatsCollection),
	}
}

func (r *ChatRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.chats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"pairKey": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "lastMessage.timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}
	return nil
}

func parseChatID(chatID string) (bson.ObjectID, *app_error.AppError) {
	id, err := bson.ObjectIDFromHex(chatID)
	if err != nil {
		return bson.NilObjectID, chatNotFound()
	}
	return id, nil
}

func (r *ChatRepo) FindChatByID(ctx context.Context, chatID string) (*entity.Chat, *app_error.AppError) {
	id, appErr := parseChatID(chatID)
	if appErr != nil {
		return nil, appErr
	}

	var chat entity.Chat
	err := r.chats.FindOne(ctx, bson.M{"_id": id, "isActive": true}, options.FindOne().SetProjection(withoutMessages)).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chatNotFound()
		}
		log.Error().Err(err).Str("chatID", chatID).Msg("failed to fetch chat")
		return nil, app_error.Persistence("failed to fetch chat", "mongo")
	}

	return &chat, nil
}

func (r *ChatRepo) FindActiveChatsForUser(ctx context.Context, userID string) ([]*entity.Chat, *app_error.AppError) {
	opts := options.Find().
		SetProjection(withoutMessages).
		SetSort(bson.D{{Key: "lastMessage.timestamp", Value: -1}, {Key: "updatedAt", Value: -1}})

	cur, err := r.chats.Find(ctx, bson.M{"participants": userID, "isActive": true}, opts)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("failed to list chats")
		return nil, app_error.Persistence("failed to fetch chats", "mongo")
	}
	defer cur.Close(ctx)

	chats := make([]*entity.Chat, 0)
	if err := cur.All(ctx, &chats); err != nil {
		return nil, app_error.Persistence(fmt.Sprintf("failed to decode chats: %v", err), "mongo")
	}

	return chats, nil
}

func (r *ChatRepo) findPrivateChat(ctx context.Context, pairKey string) (*entity.Chat, error) {
	var chat entity.Chat
	err := r.chats.FindOne(ctx, bson.M{"pairKey": pairKey, "chatType": entity.ChatTypePrivate}, options.FindOne().SetProjection(withoutMessages)).Decode(&chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepo) FindOrCreatePrivateChat(ctx context.Context, userA, userB string) (*entity.Chat, bool, *app_error.AppError) {
	pairKey := entity.PrivatePairKey(userA, userB)

	chat, err := r.findPrivateChat(ctx, pairKey)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		log.Error().Err(err).Str("pairKey", pairKey).Msg("failed to query private chat")
		return nil, false, app_error.Persistence("failed to query private chat", "mongo")
	}

	now := time.Now().UTC()
	newChat := &entity.Chat{
		ID:           bson.NewObjectID(),
		Participants: []string{userA, userB},
		ChatType:     entity.ChatTypePrivate,
		PairKey:      pairKey,
		Messages:     []entity.Message{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.chats.InsertOne(ctx, newChat); err != nil {
		// lost the race against a concurrent create for the same pair
		if mongo.IsDuplicateKeyError(err) {
			chat, findErr := r.findPrivateChat(ctx, pairKey)
			if findErr == nil {
				return chat, false, nil
			}
		}
		log.Error().Err(err).Str("pairKey", pairKey).Msg("failed to create private chat")
		return nil, false, app_error.Persistence("failed to create private chat", "mongo")
	}

	newChat.Messages = nil
	return newChat, true, nil
}

func (r *ChatRepo) CreateGroupChat(ctx context.Context, admin, name string, participants []string) (*entity.Chat, *app_error.AppError) {
	now := time.Now().UTC()
	chat := &entity.Chat{
		ID:           bson.NewObjectID(),
		Participants: participants,
		ChatType:     entity.ChatTypeGroup,
		GroupName:    name,
		GroupAdmin:   admin,
		Messages:     []entity.Message{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := r.chats.InsertOne(ctx, chat); err != nil {
		log.Error().Err(err).Msg("failed to create group chat")
		return nil, app_error.Persistence("failed to create group chat", "mongo")
	}

	chat.Messages = nil
	return chat, nil
}

// explainMiss tells apart "no such chat" from "not a participant" after a
// membership-filtered write matched nothing.
func (r *ChatRepo) explainMiss(ctx context.Context, id bson.ObjectID) *app_error.AppError {
	var probe struct {
		ID bson.ObjectID `bson:"_id"`
	}
	err := r.chats.FindOne(ctx, bson.M{"_id": id, "isActive": true}, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&probe)
	if err == nil {
		return notParticipant()
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chatNotFound()
	}
	return app_error.Persistence("failed to fetch chat", "mongo")
}

func (r *ChatRepo) AppendMessage(ctx context.Context, chatID string, msg *entity.Message) (*entity.Chat, *app_error.AppError) {
	id, appErr := parseChatID(chatID)
	if appErr != nil {
		return nil, appErr
	}

	if msg.ReadBy == nil {
		msg.ReadBy = []entity.ReadEntry{}
	}

	filter := bson.M{"_id": id, "isActive": true, "participants": msg.Sender}
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set": bson.M{
			"lastMessage": entity.LastMessage{
				Content:   entity.LastMessageContent(msg),
				Sender:    msg.Sender,
				Timestamp: msg.CreatedAt,
			},
			"updatedAt": msg.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutMessages)

	var chat entity.Chat
	err := r.chats.FindOneAndUpdate(ctx, filter, update, opts).Decode(&chat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.explainMiss(ctx, id)
		}
		log.Error().Err(err).Str("chatID", chatID).Msg("failed to append message")
		return nil, app_error.Persistence("failed to save message", "mongo")
	}

	return &chat, nil
}

func (r *ChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string, readAt time.Time) *app_error.AppError {
	id, appErr := parseChatID(chatID)
	if appErr != nil {
		return appErr
	}

	filter := bson.M{"_id": id, "isActive": true, "participants": userID}
	update := bson.M{
		"$push": bson.M{"messages.$[m].readBy": entity.ReadEntry{User: userID, ReadAt: readAt}},
	}
	opts := options.UpdateOne().SetArrayFilters([]any{
		bson.M{"m.sender": bson.M{"$ne": userID}, "m.readBy.user": bson.M{"$ne": userID}},
	})

	result, err := r.chats.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		log.Error().Err(err).Str("chatID", chatID).Str("userID", userID).Msg("failed to mark messages read")
		return app_error.Persistence("failed to mark messages read", "mongo")
	}

	if result.MatchedCount == 0 {
		return r.explainMiss(ctx, id)
	}

	return nil
}

func (r *ChatRepo) GetMessages(ctx context.Context, chatID string, skip, limit int) ([]entity.Message, int, *app_error.AppError) {
	id, appErr := parseChatID(chatID)
	if appErr != nil {
		return nil, 0, appErr
	}

	var meta struct {
		MessageCount int `bson:"messageCount"`
	}
	countProjection := bson.M{"messageCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$messages", bson.A{}}}}}
	err := r.chats.FindOne(ctx, bson.M{"_id": id, "isActive": true}, options.FindOne().SetProjection(countProjection)).Decode(&meta)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, 0, chatNotFound()
		}
		return nil, 0, app_error.Persistence(fmt.Sprintf("failed to count messages: %v", err), "mongo")
	}

	start, end := pageBounds(meta.MessageCount, skip, limit)
	if end == start {
		return []entity.Message{}, meta.MessageCount, nil
	}

	var page struct {
		Messages []entity.Message `bson:"messages"`
	}
	sliceProjection := bson.M{"messages": bson.M{"$slice": bson.A{start, end - start}}, "_id": 1}
	err = r.chats.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(sliceProjection)).Decode(&page)
	if err != nil {
		return nil, 0, app_error.Persistence(fmt.Sprintf("failed to fetch messages: %v", err), "mongo")
	}

	return page.Messages, meta.MessageCount, nil
}
