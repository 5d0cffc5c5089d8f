//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound half of one physical connection.
// Consume must never block: a sink that cannot accept an event
// reports errors.ErrConnectionLost instead.
type EventSink interface {
	Consume(ctx context.Context, e event.ServerEvent) error
	Close() error
}

// IRegistry is the only component allowed to write to connections.
type IRegistry interface {
	Deliver(ctx context.Context, userID domain.UserID, e event.ServerEvent) bool
	DeliverToRoom(ctx context.Context, roomID domain.RoomID, e event.ServerEvent, members IMembership, except ...domain.UserID) int
	Broadcast(ctx context.Context, e event.ServerEvent, except ...domain.UserID) int
	IsOnline(userID domain.UserID) bool
}

type IMembership interface {
	Join(userID domain.UserID, roomID domain.RoomID) bool
	Leave(userID domain.UserID, roomID domain.RoomID) bool
	RoomsOf(userID domain.UserID) []domain.RoomID
	MembersOf(roomID domain.RoomID) []domain.UserID
	Clear(userID domain.UserID) []domain.RoomID
}

type ICallRooms interface {
	Join(p domain.Participant) ([]domain.Participant, error)
	Leave(roomID domain.CallRoomID, participantID domain.ParticipantID, owner domain.UserID) (domain.Departure, error)
	Route(roomID domain.CallRoomID, from, to domain.ParticipantID, owner domain.UserID) (domain.Participant, bool, error)
	LeaveAll(owner domain.UserID) []domain.Departure
}

// IMessageStore is the persistence collaborator. It is authoritative for
// message identity, timestamps and reaction uniqueness.
type IMessageStore interface {
	StoreMessage(ctx context.Context, message domain.Message) (domain.MessageRecord, error)
	MessageByID(ctx context.Context, messageID string) (domain.PersistedMessage, error)
	ToggleReaction(ctx context.Context, reaction domain.Reaction, add bool) error
	ListReactions(ctx context.Context, messageID string) ([]domain.Reaction, error)
}

type IUserDirectory interface {
	DisplayName(ctx context.Context, userID domain.UserID) (string, error)
}

// IModerator masks forbidden words; it returns the censored content and the words it matched.
type IModerator interface {
	Censor(content string) (string, []string)
}

// IAuthenticator turns a bearer credential into an identity.
// Issuing credentials is not its concern.
type IAuthenticator interface {
	Authenticate(ctx context.Context, token string) (domain.UserID, error)
}
