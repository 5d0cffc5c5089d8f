// Package domain contains core concepts of the relay.
// This file defines Message routing and related rules.
package domain

import (
	"chat-relay/errors"
	"time"
)

// Target routes a message or a typing indicator.
// Exactly one of RoomID or RecipientID must be set.
type Target struct {
	RoomID      RoomID
	RecipientID UserID
}

func RoomTarget(roomID RoomID) Target {
	return Target{RoomID: roomID}
}

func DirectTarget(recipientID UserID) Target {
	return Target{RecipientID: recipientID}
}

// Validate rejects a target carrying both or neither destination.
func (t Target) Validate() error {
	hasRoom := t.RoomID != ""
	hasRecipient := t.RecipientID != ""
	switch {
	case hasRoom && hasRecipient:
		return errors.Wrap(errors.ErrInvalidTarget, "both room_id and recipient_id are set")
	case !hasRoom && !hasRecipient:
		return errors.Wrap(errors.ErrInvalidTarget, "one of room_id or recipient_id is required")
	}
	return nil
}

func (t Target) IsRoom() bool {
	return t.RoomID != ""
}

// Message is an outbound chat message as submitted by its sender,
// before the store assigned it an identity.
type Message struct {
	SenderID      UserID
	Target        Target
	Content       string
	AttachmentRef string
}

// MessageRecord is what the store assigns on a successful write.
// Both fields are authoritative: client supplied values are never trusted.
type MessageRecord struct {
	ID        string
	CreatedAt time.Time
}

// PersistedMessage is a message that survived the store.
type PersistedMessage struct {
	Message
	MessageRecord
}

// Participants returns the identities of a direct conversation.
// It is empty for room messages.
func (m PersistedMessage) Participants() []UserID {
	if m.Target.IsRoom() {
		return nil
	}
	if m.SenderID == m.Target.RecipientID {
		return []UserID{m.SenderID}
	}
	return []UserID{m.SenderID, m.Target.RecipientID}
}
