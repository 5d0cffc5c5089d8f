package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	messagePrefix  = "msg:"
	reactionPrefix = "react:"
	// Emoji shortcodes and identities may contain ':', NUL cannot appear in either
	reactionSeparator = "\x00"
)

// MessageRepository is the badger backed persistence collaborator.
// It assigns message identity and creation time, and owns reaction uniqueness.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// StoreMessage persists a message under "msg:{id}".
func (m *MessageRepository) StoreMessage(ctx context.Context, message domain.Message) (domain.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.MessageRecord{}, err
	}
	record := domain.MessageRecord{ID: uuid.NewString(), CreatedAt: m.now()}
	bytes, err := encodeMessage(domain.PersistedMessage{Message: message, MessageRecord: record})
	if err != nil {
		return domain.MessageRecord{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(record.ID), bytes)
	})
	if err != nil {
		return domain.MessageRecord{}, err
	}
	return record, nil
}

func (m *MessageRepository) MessageByID(ctx context.Context, messageID string) (domain.PersistedMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.PersistedMessage{}, err
	}
	var message domain.PersistedMessage
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessage(txn, messageID)
		return err
	})
	return message, err
}

// ToggleReaction is idempotent in both directions: adding twice keeps one
// reaction, removing an absent one is a no-op.
// The key "react:{message_id}:{user_id}:{emoji}" makes the triple unique.
func (m *MessageRepository) ToggleReaction(ctx context.Context, reaction domain.Reaction, add bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if _, err := getMessage(txn, reaction.MessageID); err != nil {
			return err
		}
		key := reactionKey(reaction)
		if !add {
			return txn.Delete(key)
		}
		bytes, err := encodeReaction(reaction, m.now())
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
}

func (m *MessageRepository) ListReactions(ctx context.Context, messageID string) ([]domain.Reaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var reactions []domain.Reaction
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := reactionMessagePrefix(messageID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				reaction, err := decodeReaction(value)
				if err != nil {
					return err
				}
				reactions = append(reactions, reaction)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return reactions, err
}

// Messages scans the store, up to limit messages when limit is positive.
func (m *MessageRepository) Messages(limit int) ([]domain.PersistedMessage, error) {
	var messages []domain.PersistedMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func getMessage(txn *badger.Txn, messageID string) (domain.PersistedMessage, error) {
	item, err := txn.Get(messageKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.PersistedMessage{}, errors.Wrap(errors.ErrMessageNotFound, messageID)
	}
	if err != nil {
		return domain.PersistedMessage{}, err
	}
	var message domain.PersistedMessage
	err = item.Value(func(value []byte) error {
		message, err = decodeMessage(value)
		return err
	})
	return message, err
}

func messageKey(messageID string) []byte {
	return []byte(messagePrefix + messageID)
}

func reactionMessagePrefix(messageID string) []byte {
	return []byte(reactionPrefix + messageID + reactionSeparator)
}

func reactionKey(r domain.Reaction) []byte {
	return []byte(reactionPrefix + r.MessageID + reactionSeparator + string(r.UserID) + reactionSeparator + r.Emoji)
}

func encodeMessage(m domain.PersistedMessage) ([]byte, error) {
	value, err := structpb.NewStruct(map[string]any{
		"id":             m.ID,
		"sender_id":      string(m.SenderID),
		"room_id":        string(m.Target.RoomID),
		"recipient_id":   string(m.Target.RecipientID),
		"content":        m.Content,
		"attachment_ref": m.AttachmentRef,
		"created_at":     m.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(value)
}

func decodeMessage(bytes []byte) (domain.PersistedMessage, error) {
	var value structpb.Struct
	if err := proto.Unmarshal(bytes, &value); err != nil {
		return domain.PersistedMessage{}, err
	}
	fields := value.GetFields()
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"].GetStringValue())
	if err != nil {
		return domain.PersistedMessage{}, err
	}
	return domain.PersistedMessage{
		Message: domain.Message{
			SenderID: domain.UserID(fields["sender_id"].GetStringValue()),
			Target: domain.Target{
				RoomID:      domain.RoomID(fields["room_id"].GetStringValue()),
				RecipientID: domain.UserID(fields["recipient_id"].GetStringValue()),
			},
			Content:       fields["content"].GetStringValue(),
			AttachmentRef: fields["attachment_ref"].GetStringValue(),
		},
		MessageRecord: domain.MessageRecord{
			ID:        fields["id"].GetStringValue(),
			CreatedAt: createdAt,
		},
	}, nil
}

func encodeReaction(r domain.Reaction, at time.Time) ([]byte, error) {
	value, err := structpb.NewStruct(map[string]any{
		"message_id": r.MessageID,
		"user_id":    string(r.UserID),
		"emoji":      r.Emoji,
		"created_at": at.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(value)
}

func decodeReaction(bytes []byte) (domain.Reaction, error) {
	var value structpb.Struct
	if err := proto.Unmarshal(bytes, &value); err != nil {
		return domain.Reaction{}, err
	}
	fields := value.GetFields()
	return domain.Reaction{
		MessageID: fields["message_id"].GetStringValue(),
		UserID:    domain.UserID(fields["user_id"].GetStringValue()),
		Emoji:     fields["emoji"].GetStringValue(),
	}, nil
}
