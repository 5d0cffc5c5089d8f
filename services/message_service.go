package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// MessageService validates, persists and fans out chat messages.
// Nothing is delivered unless the store accepted the message.
type MessageService struct {
	log              *slog.Logger
	registry         contract.IRegistry
	membership       contract.IMembership
	store            contract.IMessageStore
	directory        contract.IUserDirectory
	moderator        contract.IModerator
	validate         *validator.Validate
	storeTimeout     time.Duration
	maxContentLength int
}

func NewMessageService(
	log *slog.Logger,
	registry contract.IRegistry,
	membership contract.IMembership,
	store contract.IMessageStore,
	directory contract.IUserDirectory,
	moderator contract.IModerator,
	storeTimeout time.Duration,
	maxContentLength int,
) *MessageService {
	return &MessageService{
		log:              log,
		registry:         registry,
		membership:       membership,
		store:            store,
		directory:        directory,
		moderator:        moderator,
		validate:         validator.New(),
		storeTimeout:     storeTimeout,
		maxContentLength: maxContentLength,
	}
}

// Dispatch returns the event that was fanned out.
// Room messages are not echoed to the sender, direct messages are.
func (s *MessageService) Dispatch(ctx context.Context, senderID domain.UserID, cmd event.SendMessage) (event.ChatMessage, error) {
	target := cmd.Target()
	if err := target.Validate(); err != nil {
		return event.ChatMessage{}, err
	}
	if s.maxContentLength > 0 {
		if err := s.validate.Var(cmd.Content, fmt.Sprintf("max=%d", s.maxContentLength)); err != nil {
			return event.ChatMessage{}, errors.Wrap(errors.ErrMalformedFrame,
				fmt.Sprintf("content exceeds %d characters", s.maxContentLength))
		}
	}

	content := cmd.Content
	if s.moderator != nil {
		var words []string
		content, words = s.moderator.Censor(content)
		if len(words) > 0 {
			s.log.Info("Message censored", "user_id", senderID, "words", len(words))
		}
	}

	message := domain.Message{
		SenderID:      senderID,
		Target:        target,
		Content:       content,
		AttachmentRef: cmd.AttachmentRef,
	}
	record, err := s.storeMessage(ctx, message)
	if err != nil {
		s.log.Error("Message not persisted, dispatch aborted", "user_id", senderID, "error", err)
		return event.ChatMessage{}, errors.Wrap(errors.ErrStorageFailure, err.Error())
	}

	persisted := domain.PersistedMessage{Message: message, MessageRecord: record}
	out := event.NewChatMessage(persisted, s.senderName(ctx, senderID))

	if target.IsRoom() {
		delivered := s.registry.DeliverToRoom(ctx, target.RoomID, out, s.membership, senderID)
		s.log.Debug("Room message dispatched",
			"message_id", record.ID, "room_id", target.RoomID, "delivered", delivered)
		return out, nil
	}
	for _, userID := range persisted.Participants() {
		s.registry.Deliver(ctx, userID, out)
	}
	s.log.Debug("Direct message dispatched", "message_id", record.ID, "recipient_id", target.RecipientID)
	return out, nil
}

func (s *MessageService) storeMessage(ctx context.Context, message domain.Message) (domain.MessageRecord, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}
	return s.store.StoreMessage(ctx, message)
}

// senderName falls back to the identity when no directory knows the sender.
func (s *MessageService) senderName(ctx context.Context, userID domain.UserID) string {
	if s.directory == nil {
		return string(userID)
	}
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil || name == "" {
		return string(userID)
	}
	return name
}
