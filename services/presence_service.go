package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

// PresenceService is advisory: at most once, no acknowledgement, no retry.
type PresenceService struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewPresenceService(log *slog.Logger, registry contract.IRegistry) *PresenceService {
	return &PresenceService{log: log, registry: registry}
}

// Announce reaches every other registered connection and returns how many accepted it.
func (s *PresenceService) Announce(ctx context.Context, userID domain.UserID, status domain.PresenceStatus) int {
	delivered := s.registry.Broadcast(ctx, event.PresenceChanged{UserID: userID, Status: status}, userID)
	s.log.Debug("Presence announced", "user_id", userID, "status", status, "delivered", delivered)
	return delivered
}
