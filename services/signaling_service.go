package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

// SignalingService relays call setup between participants of call rooms.
// Payloads are forwarded verbatim and nothing is queued: a signal for a
// participant that is gone is dropped without telling anyone.
type SignalingService struct {
	log       *slog.Logger
	registry  contract.IRegistry
	callRooms contract.ICallRooms
}

func NewSignalingService(log *slog.Logger, registry contract.IRegistry, callRooms contract.ICallRooms) *SignalingService {
	return &SignalingService{log: log, registry: registry, callRooms: callRooms}
}

// Join notifies the owners of every other participant already in the room.
func (s *SignalingService) Join(ctx context.Context, owner domain.UserID, cmd event.CallJoin) error {
	participant := domain.Participant{
		RoomID:      cmd.RoomID,
		ID:          cmd.ParticipantID,
		DisplayName: cmd.DisplayName,
		Owner:       owner,
	}
	others, err := s.callRooms.Join(participant)
	if err != nil {
		return err
	}
	joined := event.CallParticipantJoined{
		RoomID:        cmd.RoomID,
		ParticipantID: cmd.ParticipantID,
		DisplayName:   cmd.DisplayName,
	}
	for _, userID := range domain.Owners(others) {
		s.registry.Deliver(ctx, userID, joined)
	}
	s.log.Debug("Participant joined call room",
		"room_id", cmd.RoomID, "participant_id", cmd.ParticipantID, "others", len(others))
	return nil
}

func (s *SignalingService) Leave(ctx context.Context, owner domain.UserID, cmd event.CallLeave) error {
	departure, err := s.callRooms.Leave(cmd.RoomID, cmd.ParticipantID, owner)
	if err != nil {
		return err
	}
	s.notifyDeparture(ctx, departure)
	return nil
}

// Relay checks the sender side strictly and the target side loosely.
func (s *SignalingService) Relay(ctx context.Context, owner domain.UserID, cmd event.CallRelay) error {
	target, ok, err := s.callRooms.Route(cmd.RoomID, cmd.From, cmd.To, owner)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("Signal target absent, dropped",
			"room_id", cmd.RoomID, "from", cmd.From, "to", cmd.To, "kind", cmd.Kind)
		return nil
	}
	s.registry.Deliver(ctx, target.Owner, event.CallSignal{
		Kind:    cmd.Kind,
		RoomID:  cmd.RoomID,
		From:    cmd.From,
		To:      cmd.To,
		Payload: cmd.Payload,
	})
	return nil
}

// Disconnect runs the leave transition for every participant owned by owner,
// exactly as if each had left explicitly.
func (s *SignalingService) Disconnect(ctx context.Context, owner domain.UserID) int {
	departures := s.callRooms.LeaveAll(owner)
	for _, departure := range departures {
		s.notifyDeparture(ctx, departure)
	}
	return len(departures)
}

func (s *SignalingService) notifyDeparture(ctx context.Context, departure domain.Departure) {
	left := event.CallParticipantLeft{
		RoomID:        departure.Participant.RoomID,
		ParticipantID: departure.Participant.ID,
	}
	for _, userID := range domain.Owners(departure.Remaining) {
		s.registry.Deliver(ctx, userID, left)
	}
	s.log.Debug("Participant left call room",
		"room_id", left.RoomID, "participant_id", left.ParticipantID, "room_closed", departure.RoomClosed)
}
