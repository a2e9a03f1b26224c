package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/messaging"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/realtime"
	"gawangliliw/sellerhub/internal/storage"
	"gawangliliw/sellerhub/internal/utils"
)

const maxMessageLength = 4000

// ThreadChange is one update of an open conversation. Messages carries the
// added or edited messages; ID alone identifies a removed one.
type ThreadChange struct {
	Kind     realtime.Kind    `json:"kind"`
	ID       utils.SixID      `json:"id"`
	Messages []models.Message `json:"messages,omitempty"`
}

// IMessageService backs the messages page.
type IMessageService interface {
	ListInbox(ctx context.Context, sellerID utils.SixID) ([]models.Conversation, error)
	ListMessages(ctx context.Context, sellerID, conversationID utils.SixID) ([]models.Message, error)
	SendMessage(ctx context.Context, sellerID, conversationID utils.SixID, text string, attachments []models.Attachment) (*models.Message, error)
	UploadAttachment(ctx context.Context, sellerID, conversationID utils.SixID, filename, contentType string, data []byte) (*models.Attachment, error)
	MarkRead(ctx context.Context, sellerID, conversationID utils.SixID) (int64, error)
	WatchConversation(ctx context.Context, sellerID, conversationID utils.SixID, clientID string, emit func(ThreadChange) error) error
	WatchInbox(ctx context.Context, sellerID utils.SixID, clientID string, emit func([]models.Conversation) error) error
}

type messageService struct {
	db    *mongo.Database
	cfg   *config.Config
	files storage.IFileStore
	live  Subscriber
}

func NewMessageService(database *mongo.Database, cfg *config.Config, files storage.IFileStore, live Subscriber) IMessageService {
	return &messageService{db: database, cfg: cfg, files: files, live: live}
}

func (s *messageService) conversations() *mongo.Collection {
	return s.db.Collection(db.ConversationsCollection)
}

func (s *messageService) messages() *mongo.Collection {
	return s.db.Collection(db.MessagesCollection)
}

// conversation loads a conversation the seller takes part in. Conversations
// of other sellers report ErrNotFound.
func (s *messageService) conversation(ctx context.Context, sellerID, conversationID utils.SixID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.conversations().FindOne(ctx, bson.M{"_id": conversationID, "participants": sellerID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

// ListInbox returns the seller's conversations, latest activity first.
func (s *messageService) ListInbox(ctx context.Context, sellerID utils.SixID) ([]models.Conversation, error) {
	cursor, err := s.conversations().Find(ctx, bson.M{"participants": sellerID})
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	convs := []models.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, fmt.Errorf("error decoding conversations: %w", err)
	}
	messaging.SortInbox(convs)
	return convs, nil
}

func (s *messageService) resolveAttachments(ctx context.Context, msgs []models.Message) {
	for i := range msgs {
		for j := range msgs[i].Attachments {
			a := &msgs[i].Attachments[j]
			url, err := s.files.ResolveURL(ctx, a.FileKey)
			if err != nil {
				logger.Log.Warn("attachment_url_failed", zap.String("key", a.FileKey), zap.Error(err))
				continue
			}
			a.URL = url
		}
	}
}

// ListMessages returns a conversation's messages oldest first.
func (s *messageService) ListMessages(ctx context.Context, sellerID, conversationID utils.SixID) ([]models.Message, error) {
	if _, err := s.conversation(ctx, sellerID, conversationID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages().Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("error decoding messages: %w", err)
	}
	messaging.SortThread(msgs)
	s.resolveAttachments(ctx, msgs)
	return msgs, nil
}

// SendMessage appends a message, then updates the conversation snapshot and
// the receiver's unread counter. The second write is not transactional with
// the first; a failure there is logged and the message still stands.
func (s *messageService) SendMessage(ctx context.Context, sellerID, conversationID utils.SixID, text string, attachments []models.Attachment) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return nil, invalidf("message needs text or an attachment")
	}
	if len(text) > maxMessageLength {
		return nil, invalidf("message longer than %d characters", maxMessageLength)
	}
	conv, err := s.conversation(ctx, sellerID, conversationID)
	if err != nil {
		return nil, err
	}
	receiver, ok := conv.OtherParticipant(sellerID)
	if !ok {
		return nil, invalidf("conversation has no other participant")
	}
	prefix := "conversations/" + conversationID.String() + "/"
	for _, a := range attachments {
		if !strings.HasPrefix(a.FileKey, prefix) {
			return nil, ErrForbidden
		}
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       sellerID,
		ReceiverID:     receiver,
		Text:           text,
		Attachments:    attachments,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.InsertWithNewID(ctx, s.messages(), msg); err != nil {
		return nil, fmt.Errorf("error inserting message: %w", err)
	}

	preview := text
	if preview == "" {
		preview = "[attachment]"
	}
	_, err = s.conversations().UpdateOne(ctx, bson.M{"_id": conversationID}, bson.M{
		"$set": bson.M{
			"last_message": models.LastMessage{MessageID: msg.ID, SenderID: sellerID, Text: preview, CreatedAt: msg.CreatedAt},
			"updated_at":   msg.CreatedAt,
		},
		"$inc": bson.M{"unread." + receiver.String(): 1},
	})
	if err != nil {
		logger.Log.Warn("conversation_snapshot_failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
	}
	s.resolveAttachments(ctx, []models.Message{*msg})
	return msg, nil
}

// UploadAttachment stores a file for a later SendMessage.
func (s *messageService) UploadAttachment(ctx context.Context, sellerID, conversationID utils.SixID, filename, contentType string, data []byte) (*models.Attachment, error) {
	if _, err := s.conversation(ctx, sellerID, conversationID); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalidf("empty file")
	}
	if max := int64(s.cfg.UploadMaxSizeMB) * 1024 * 1024; max > 0 && int64(len(data)) > max {
		return nil, invalidf("file exceeds %d MB", s.cfg.UploadMaxSizeMB)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.AttachmentKey(conversationID.String(), filename)
	if err := s.files.Upload(ctx, key, data, contentType); err != nil {
		return nil, err
	}
	a := &models.Attachment{FileKey: key, FileName: storage.SanitizeFilename(filename), ContentType: contentType}
	if url, err := s.files.ResolveURL(ctx, key); err == nil {
		a.URL = url
	}
	return a, nil
}

// MarkRead flags messages addressed to the seller as read and clears the
// seller's unread counter.
func (s *messageService) MarkRead(ctx context.Context, sellerID, conversationID utils.SixID) (int64, error) {
	if _, err := s.conversation(ctx, sellerID, conversationID); err != nil {
		return 0, err
	}
	res, err := s.messages().UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "receiver_id": sellerID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("error marking messages read: %w", err)
	}
	_, err = s.conversations().UpdateOne(ctx, bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"unread." + sellerID.String(): 0}})
	if err != nil {
		return 0, fmt.Errorf("error clearing unread counter: %w", err)
	}
	return res.ModifiedCount, nil
}

// WatchConversation emits the current thread as one Added change, then each
// later insert, edit and delete. Every message id is added at most once; edits
// and deletes are only relayed for messages the client already holds. It
// returns when ctx ends or the listener is replaced.
func (s *messageService) WatchConversation(ctx context.Context, sellerID, conversationID utils.SixID, clientID string, emit func(ThreadChange) error) error {
	if _, err := s.conversation(ctx, sellerID, conversationID); err != nil {
		return err
	}
	events, sub, err := live(ctx, s.live, liveKey(sellerID, clientID, "conversation"), realtime.Query{
		Collection: db.MessagesCollection,
		Match:      bson.D{{Key: "conversation_id", Value: conversationID}},
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	seen := messaging.NewDeduper()
	snapshot, err := s.ListMessages(ctx, sellerID, conversationID)
	if err != nil {
		return err
	}
	if err := emit(ThreadChange{Kind: realtime.Added, Messages: seen.AdmitAll(snapshot)}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return sub.Err()
		case ev := <-events:
			change, ok := s.threadChange(ctx, seen, ev)
			if !ok {
				continue
			}
			if err := emit(change); err != nil {
				return err
			}
		}
	}
}

// threadChange turns a change event into what the open thread needs, or
// reports false when the client has nothing to update.
func (s *messageService) threadChange(ctx context.Context, seen *messaging.Deduper, ev realtime.Event) (ThreadChange, bool) {
	if ev.Kind == realtime.Removed {
		if !seen.Has(ev.ID) {
			return ThreadChange{}, false
		}
		seen.Forget(ev.ID)
		return ThreadChange{Kind: realtime.Removed, ID: ev.ID}, true
	}
	var m models.Message
	if err := ev.DecodeDoc(&m); err != nil {
		logger.Log.Warn("message_decode_failed", zap.Error(err))
		return ThreadChange{}, false
	}
	kind := realtime.Added
	if ev.Kind == realtime.Modified && seen.Has(m.ID) {
		kind = realtime.Modified
	} else if len(seen.AdmitAll([]models.Message{m})) == 0 {
		return ThreadChange{}, false
	}
	msgs := []models.Message{m}
	s.resolveAttachments(ctx, msgs)
	return ThreadChange{Kind: kind, ID: m.ID, Messages: msgs}, true
}

// WatchInbox emits the sorted inbox now and again after every change to one
// of the seller's conversations.
func (s *messageService) WatchInbox(ctx context.Context, sellerID utils.SixID, clientID string, emit func([]models.Conversation) error) error {
	events, sub, err := live(ctx, s.live, liveKey(sellerID, clientID, "inbox"), realtime.Query{
		Collection: db.ConversationsCollection,
		Match:      bson.D{{Key: "participants", Value: sellerID}},
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	inbox, err := s.ListInbox(ctx, sellerID)
	if err != nil {
		return err
	}
	byID := make(map[utils.SixID]models.Conversation, len(inbox))
	for _, c := range inbox {
		byID[c.ID] = c
	}
	if err := emit(inbox); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return sub.Err()
		case ev := <-events:
			switch ev.Kind {
			case realtime.Removed:
				if _, ok := byID[ev.ID]; !ok {
					continue
				}
				delete(byID, ev.ID)
			default:
				var c models.Conversation
				if err := ev.DecodeDoc(&c); err != nil {
					logger.Log.Warn("conversation_decode_failed", zap.Error(err))
					continue
				}
				byID[c.ID] = c
			}
			list := make([]models.Conversation, 0, len(byID))
			for _, c := range byID {
				list = append(list, c)
			}
			messaging.SortInbox(list)
			if err := emit(list); err != nil {
				return err
			}
		}
	}
}
