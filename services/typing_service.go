package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
)

// TypingService relays ephemeral typing indicators. Nothing is stored.
type TypingService struct {
	registry   contract.IRegistry
	membership contract.IMembership
}

func NewTypingService(registry contract.IRegistry, membership contract.IMembership) *TypingService {
	return &TypingService{registry: registry, membership: membership}
}

func (s *TypingService) Relay(ctx context.Context, userID domain.UserID, target domain.Target, active bool) error {
	if err := target.Validate(); err != nil {
		return err
	}
	typing := event.Typing{
		UserID:      userID,
		RoomID:      target.RoomID,
		RecipientID: target.RecipientID,
		Active:      active,
	}
	if target.IsRoom() {
		s.registry.DeliverToRoom(ctx, target.RoomID, typing, s.membership, userID)
		return nil
	}
	if target.RecipientID != userID {
		s.registry.Deliver(ctx, target.RecipientID, typing)
	}
	return nil
}
