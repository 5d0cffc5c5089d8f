package event

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"time"
)

// Outbound event names.
const (
	ConnectionAckType         = "connection-ack"
	RoomJoinedType            = "room-joined"
	RoomLeftType              = "room-left"
	ChatMessageType           = "chat-message"
	ReactionDeltaType         = "reaction-delta"
	PresenceChangedType       = "presence-changed"
	CallParticipantJoinedType = "call-participant-joined"
	CallParticipantLeftType   = "call-participant-left"
	CallOfferType             = "call-offer"
	CallAnswerType            = "call-answer"
	CallCandidateType         = "call-candidate"
	TypingType                = "typing"
	NotificationType          = "notification"
	ErrorType                 = "error"
	PongType                  = "pong"
)

// ServerEvent is anything the relay writes to a connection.
type ServerEvent interface {
	Type() string
}

type ConnectionAck struct {
	UserID       domain.UserID `json:"user_id"`
	ConnectionID string        `json:"connection_id"`
	At           time.Time     `json:"at"`
}

type RoomJoined struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
}

type RoomLeft struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
}

type ChatMessage struct {
	ID            string        `json:"id"`
	SenderID      domain.UserID `json:"sender_id"`
	SenderName    string        `json:"sender_name"`
	RoomID        domain.RoomID `json:"room_id,omitempty"`
	RecipientID   domain.UserID `json:"recipient_id,omitempty"`
	Content       string        `json:"content"`
	AttachmentRef string        `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewChatMessage only reads the persisted identity and timestamp.
func NewChatMessage(m domain.PersistedMessage, senderName string) ChatMessage {
	return ChatMessage{
		ID:            m.ID,
		SenderID:      m.SenderID,
		SenderName:    senderName,
		RoomID:        m.Target.RoomID,
		RecipientID:   m.Target.RecipientID,
		Content:       m.Content,
		AttachmentRef: m.AttachmentRef,
		CreatedAt:     m.CreatedAt,
	}
}

type ReactionDelta struct {
	MessageID string                `json:"message_id"`
	Emoji     string                `json:"emoji"`
	Action    domain.ReactionAction `json:"action"`
	Actor     domain.UserID         `json:"actor"`
	Count     int                   `json:"count"`
}

type PresenceChanged struct {
	UserID domain.UserID         `json:"user_id"`
	Status domain.PresenceStatus `json:"status"`
}

type CallParticipantJoined struct {
	RoomID        domain.CallRoomID    `json:"room_id"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	DisplayName   string               `json:"display_name"`
}

type CallParticipantLeft struct {
	RoomID        domain.CallRoomID    `json:"room_id"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
}

// CallSignal is emitted as call-offer, call-answer or call-candidate depending on Kind.
type CallSignal struct {
	Kind    domain.SignalKind    `json:"-"`
	RoomID  domain.CallRoomID    `json:"room_id"`
	From    domain.ParticipantID `json:"from"`
	To      domain.ParticipantID `json:"to"`
	Payload json.RawMessage      `json:"payload,omitempty"`
}

type Typing struct {
	UserID      domain.UserID `json:"user_id"`
	RoomID      domain.RoomID `json:"room_id,omitempty"`
	RecipientID domain.UserID `json:"recipient_id,omitempty"`
	Active      bool          `json:"active"`
}

type Notification struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Error struct {
	Kind   errors.ErrorKind `json:"kind"`
	Detail string           `json:"detail"`
}

// NewError keeps internal details out of Internal errors.
func NewError(err error) Error {
	kind := errors.KindOf(err)
	detail := err.Error()
	if kind == errors.Internal {
		detail = "internal error"
	}
	return Error{Kind: kind, Detail: detail}
}

type Pong struct {
	At time.Time `json:"at"`
}

func (ConnectionAck) Type() string         { return ConnectionAckType }
func (RoomJoined) Type() string            { return RoomJoinedType }
func (RoomLeft) Type() string              { return RoomLeftType }
func (ChatMessage) Type() string           { return ChatMessageType }
func (ReactionDelta) Type() string         { return ReactionDeltaType }
func (PresenceChanged) Type() string       { return PresenceChangedType }
func (CallParticipantJoined) Type() string { return CallParticipantJoinedType }
func (CallParticipantLeft) Type() string   { return CallParticipantLeftType }
func (Typing) Type() string                { return TypingType }
func (Notification) Type() string          { return NotificationType }
func (Error) Type() string                 { return ErrorType }
func (Pong) Type() string                  { return PongType }

func (s CallSignal) Type() string {
	switch s.Kind {
	case domain.SignalAnswer:
		return CallAnswerType
	case domain.SignalCandidate:
		return CallCandidateType
	default:
		return CallOfferType
	}
}
