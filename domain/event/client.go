package event

import (
	"chat-relay/domain"
	"encoding/json"
)

// Inbound event names. Decoding an unknown name is an error, never a no-op.
const (
	JoinRoomType       = "join-room"
	LeaveRoomType      = "leave-room"
	SendMessageType    = "send-message"
	AddReactionType    = "add-reaction"
	RemoveReactionType = "remove-reaction"
	CallJoinType       = "call-join"
	CallLeaveType      = "call-leave"
	CallRelayType      = "call-relay"
	TypingStartType    = "typing-start"
	TypingStopType     = "typing-stop"
	PingType           = "ping"
)

// ClientEvent is the closed set of frames a client may send.
// The unexported marker keeps implementations inside this package,
// so a type switch over ClientEvent sees every variant listed here.
type ClientEvent interface {
	Type() string
	clientEvent()
}

type JoinRoom struct {
	RoomID domain.RoomID `validate:"required,max=128"`
}

type LeaveRoom struct {
	RoomID domain.RoomID `validate:"required,max=128"`
}

// SendMessage leaves the room/recipient exclusivity to domain.Target.Validate,
// which the codec runs before the field rules.
type SendMessage struct {
	Content       string        `validate:"required"`
	RoomID        domain.RoomID `validate:"max=128"`
	RecipientID   domain.UserID `validate:"max=128"`
	AttachmentRef string        `validate:"max=2048"`
}

func (e SendMessage) Target() domain.Target {
	return domain.Target{RoomID: e.RoomID, RecipientID: e.RecipientID}
}

type AddReaction struct {
	MessageID string `validate:"required"`
	Emoji     string `validate:"required,max=64"`
}

type RemoveReaction struct {
	MessageID string `validate:"required"`
	Emoji     string `validate:"required,max=64"`
}

type CallJoin struct {
	RoomID        domain.CallRoomID    `validate:"required,max=128"`
	ParticipantID domain.ParticipantID `validate:"required,max=128"`
	DisplayName   string               `validate:"max=256"`
}

type CallLeave struct {
	RoomID        domain.CallRoomID    `validate:"required,max=128"`
	ParticipantID domain.ParticipantID `validate:"required,max=128"`
}

// CallRelay carries an opaque payload. It is never parsed past its JSON boundaries.
type CallRelay struct {
	RoomID  domain.CallRoomID    `validate:"required"`
	From    domain.ParticipantID `validate:"required"`
	To      domain.ParticipantID `validate:"required"`
	Kind    domain.SignalKind    `validate:"required,oneof=offer answer candidate"`
	Payload json.RawMessage
}

type TypingStart struct {
	RoomID      domain.RoomID
	RecipientID domain.UserID
}

func (e TypingStart) Target() domain.Target {
	return domain.Target{RoomID: e.RoomID, RecipientID: e.RecipientID}
}

type TypingStop struct {
	RoomID      domain.RoomID
	RecipientID domain.UserID
}

func (e TypingStop) Target() domain.Target {
	return domain.Target{RoomID: e.RoomID, RecipientID: e.RecipientID}
}

type Ping struct{}

func (JoinRoom) Type() string       { return JoinRoomType }
func (LeaveRoom) Type() string      { return LeaveRoomType }
func (SendMessage) Type() string    { return SendMessageType }
func (AddReaction) Type() string    { return AddReactionType }
func (RemoveReaction) Type() string { return RemoveReactionType }
func (CallJoin) Type() string       { return CallJoinType }
func (CallLeave) Type() string      { return CallLeaveType }
func (CallRelay) Type() string      { return CallRelayType }
func (TypingStart) Type() string    { return TypingStartType }
func (TypingStop) Type() string     { return TypingStopType }
func (Ping) Type() string           { return PingType }

func (JoinRoom) clientEvent()       {}
func (LeaveRoom) clientEvent()      {}
func (SendMessage) clientEvent()    {}
func (AddReaction) clientEvent()    {}
func (RemoveReaction) clientEvent() {}
func (CallJoin) clientEvent()       {}
func (CallLeave) clientEvent()      {}
func (CallRelay) clientEvent()      {}
func (TypingStart) clientEvent()    {}
func (TypingStop) clientEvent()     {}
func (Ping) clientEvent()           {}
