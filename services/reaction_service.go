package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"
	"time"
)

// ReactionService applies reaction toggles and relays the recomputed count.
// Counts are always read back from the store, never tracked here.
type ReactionService struct {
	log          *slog.Logger
	registry     contract.IRegistry
	membership   contract.IMembership
	store        contract.IMessageStore
	storeTimeout time.Duration
}

func NewReactionService(
	log *slog.Logger,
	registry contract.IRegistry,
	membership contract.IMembership,
	store contract.IMessageStore,
	storeTimeout time.Duration,
) *ReactionService {
	return &ReactionService{
		log:          log,
		registry:     registry,
		membership:   membership,
		store:        store,
		storeTimeout: storeTimeout,
	}
}

func (s *ReactionService) Add(ctx context.Context, actor domain.UserID, messageID, emoji string) (event.ReactionDelta, error) {
	return s.toggle(ctx, domain.Reaction{MessageID: messageID, UserID: actor, Emoji: emoji}, domain.ReactionAdded)
}

func (s *ReactionService) Remove(ctx context.Context, actor domain.UserID, messageID, emoji string) (event.ReactionDelta, error) {
	return s.toggle(ctx, domain.Reaction{MessageID: messageID, UserID: actor, Emoji: emoji}, domain.ReactionRemoved)
}

func (s *ReactionService) toggle(ctx context.Context, reaction domain.Reaction, action domain.ReactionAction) (event.ReactionDelta, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	// The audience is the one the message itself reached
	message, err := s.store.MessageByID(ctx, reaction.MessageID)
	if err != nil {
		return event.ReactionDelta{}, storageError(err)
	}
	if err := s.store.ToggleReaction(ctx, reaction, action == domain.ReactionAdded); err != nil {
		s.log.Error("Reaction not persisted", "message_id", reaction.MessageID, "user_id", reaction.UserID, "error", err)
		return event.ReactionDelta{}, storageError(err)
	}
	reactions, err := s.store.ListReactions(ctx, reaction.MessageID)
	if err != nil {
		return event.ReactionDelta{}, storageError(err)
	}

	delta := event.ReactionDelta{
		MessageID: reaction.MessageID,
		Emoji:     reaction.Emoji,
		Action:    action,
		Actor:     reaction.UserID,
		Count:     domain.CountEmoji(reactions, reaction.Emoji),
	}

	// Delivery outlives the store deadline
	ctx = context.WithoutCancel(ctx)
	if message.Target.IsRoom() {
		s.registry.DeliverToRoom(ctx, message.Target.RoomID, delta, s.membership)
		return delta, nil
	}
	for _, userID := range message.Participants() {
		s.registry.Deliver(ctx, userID, delta)
	}
	return delta, nil
}

// storageError keeps a missing message distinguishable from a failing store.
func storageError(err error) error {
	if errors.Is(err, errors.ErrMessageNotFound) || errors.Is(err, errors.ErrStorageFailure) {
		return err
	}
	return errors.Wrap(errors.ErrStorageFailure, err.Error())
}
