// Package domain contains core concepts of the relay.
// This file defines the identifiers shared by every component.
// No runtime, network, or storage logic should be added here.
package domain

// UserID is an already-authenticated chat identity.
type UserID string

// RoomID identifies a chat room (channel).
type RoomID string

// CallRoomID identifies a call room. Call rooms live in their own namespace:
// a CallRoomID never refers to a chat room with the same string value.
type CallRoomID string

// ParticipantID is a call-scoped identity chosen by the client.
// One UserID may own several participants (one per device).
type ParticipantID string
