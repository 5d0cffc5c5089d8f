// Package codec turns websocket frames into client events and server events into frames.
// Frames are JSON envelopes in both directions: {"type": "...", "data": {...}}.
package codec

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fastjson"
)

type Codec struct {
	parsers  fastjson.ParserPool
	validate *validator.Validate
}

func New() *Codec {
	return &Codec{validate: validator.New()}
}

type targeted interface {
	Target() domain.Target
}

type envelope struct {
	Type string            `json:"type"`
	Data event.ServerEvent `json:"data"`
}

func (c *Codec) Encode(e event.ServerEvent) ([]byte, error) {
	return json.Marshal(envelope{Type: e.Type(), Data: e})
}

// Decode never returns a partially filled event: anything that does not
// fit the vocabulary is an ErrMalformedFrame, except a bad target which is
// an ErrInvalidTarget.
func (c *Codec) Decode(frame []byte) (event.ClientEvent, error) {
	parser := c.parsers.Get()
	defer c.parsers.Put(parser)

	v, err := parser.ParseBytes(frame)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMalformedFrame, "invalid json")
	}
	if v.Type() != fastjson.TypeObject {
		return nil, errors.Wrap(errors.ErrMalformedFrame, "frame must be an object")
	}
	typeValue := v.Get("type")
	if typeValue == nil || typeValue.Type() != fastjson.TypeString {
		return nil, errors.Wrap(errors.ErrMalformedFrame, "missing field \"type\"")
	}
	data := v.Get("data")
	if data != nil && data.Type() != fastjson.TypeObject && data.Type() != fastjson.TypeNull {
		return nil, errors.Wrap(errors.ErrMalformedFrame, "field \"data\" must be an object")
	}

	f := &fields{v: data}
	e, err := c.build(string(typeValue.GetStringBytes()), f)
	if err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	// Routing is checked before the fields so that a bad target is always an InvalidTarget
	if t, ok := e.(targeted); ok {
		if err := t.Target().Validate(); err != nil {
			return nil, err
		}
	}
	if err := c.validate.Struct(e); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedFrame, err.Error())
	}
	return e, nil
}

func (c *Codec) build(eventType string, f *fields) (event.ClientEvent, error) {
	switch eventType {
	case event.JoinRoomType:
		return event.JoinRoom{RoomID: domain.RoomID(f.str("room_id"))}, nil
	case event.LeaveRoomType:
		return event.LeaveRoom{RoomID: domain.RoomID(f.str("room_id"))}, nil
	case event.SendMessageType:
		return event.SendMessage{
			Content:       f.str("content"),
			RoomID:        domain.RoomID(f.str("room_id")),
			RecipientID:   domain.UserID(f.str("recipient_id")),
			AttachmentRef: f.str("attachment_ref"),
		}, nil
	case event.AddReactionType:
		return event.AddReaction{MessageID: f.str("message_id"), Emoji: f.str("emoji")}, nil
	case event.RemoveReactionType:
		return event.RemoveReaction{MessageID: f.str("message_id"), Emoji: f.str("emoji")}, nil
	case event.CallJoinType:
		return event.CallJoin{
			RoomID:        domain.CallRoomID(f.str("room_id")),
			ParticipantID: domain.ParticipantID(f.str("participant_id")),
			DisplayName:   f.str("display_name"),
		}, nil
	case event.CallLeaveType:
		return event.CallLeave{
			RoomID:        domain.CallRoomID(f.str("room_id")),
			ParticipantID: domain.ParticipantID(f.str("participant_id")),
		}, nil
	case event.CallRelayType:
		return event.CallRelay{
			RoomID:  domain.CallRoomID(f.str("room_id")),
			From:    domain.ParticipantID(f.str("from")),
			To:      domain.ParticipantID(f.str("to")),
			Kind:    domain.SignalKind(f.str("kind")),
			Payload: f.raw("payload"),
		}, nil
	case event.TypingStartType:
		return event.TypingStart{
			RoomID:      domain.RoomID(f.str("room_id")),
			RecipientID: domain.UserID(f.str("recipient_id")),
		}, nil
	case event.TypingStopType:
		return event.TypingStop{
			RoomID:      domain.RoomID(f.str("room_id")),
			RecipientID: domain.UserID(f.str("recipient_id")),
		}, nil
	case event.PingType:
		return event.Ping{}, nil
	default:
		return nil, errors.Wrap(errors.ErrMalformedFrame, fmt.Sprintf("unknown event type %q", eventType))
	}
}

// fields reads optional members of the data object and keeps the first type error.
type fields struct {
	v   *fastjson.Value
	err error
}

func (f *fields) str(key string) string {
	if f.v == nil || f.err != nil {
		return ""
	}
	value := f.v.Get(key)
	if value == nil || value.Type() == fastjson.TypeNull {
		return ""
	}
	if value.Type() != fastjson.TypeString {
		f.err = errors.Wrap(errors.ErrMalformedFrame, fmt.Sprintf("field %q must be a string", key))
		return ""
	}
	return string(value.GetStringBytes())
}

// raw captures a member as JSON without interpreting it.
func (f *fields) raw(key string) json.RawMessage {
	if f.v == nil || f.err != nil {
		return nil
	}
	value := f.v.Get(key)
	if value == nil {
		return nil
	}
	return value.MarshalTo(nil)
}
