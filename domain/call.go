// Package domain contains core concepts of the relay.
// This file defines call rooms, their participants and the join/leave transitions.
// A call room is Active while it holds at least one participant and does not exist otherwise.
package domain

import (
	"chat-relay/errors"
	"sort"

	"github.com/samber/lo"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

type Participant struct {
	RoomID      CallRoomID
	ID          ParticipantID
	DisplayName string
	Owner       UserID
}

// Departure describes a participant that left and who must hear about it.
type Departure struct {
	Participant Participant
	Remaining   []Participant
	RoomClosed  bool
}

type CallRoom struct {
	ID           CallRoomID
	participants map[ParticipantID]Participant
}

func NewCallRoom(id CallRoomID) *CallRoom {
	return &CallRoom{
		ID:           id,
		participants: make(map[ParticipantID]Participant),
	}
}

// Join adds p and returns the participants that were already present.
// Joining again with the same participant id refreshes its display name;
// a participant id owned by another user is refused.
func (r *CallRoom) Join(p Participant) ([]Participant, error) {
	if existing, ok := r.participants[p.ID]; ok && existing.Owner != p.Owner {
		return nil, errors.Wrap(errors.ErrParticipantConflict, string(p.ID))
	}
	p.RoomID = r.ID
	others := r.others(p.ID)
	r.participants[p.ID] = p
	return others, nil
}

// Leave removes the participant if owner holds it.
func (r *CallRoom) Leave(id ParticipantID, owner UserID) (Departure, error) {
	p, ok := r.participants[id]
	if !ok || p.Owner != owner {
		return Departure{}, errors.Wrap(errors.ErrNotAMember, "participant "+string(id)+" is not in call room "+string(r.ID))
	}
	delete(r.participants, id)
	return Departure{
		Participant: p,
		Remaining:   r.Participants(),
		RoomClosed:  r.IsEmpty(),
	}, nil
}

// LeaveAll removes every participant owned by owner, one departure per participant.
// Each departure lists the participants still present right after it.
func (r *CallRoom) LeaveAll(owner UserID) []Departure {
	owned := lo.Filter(r.Participants(), func(p Participant, _ int) bool {
		return p.Owner == owner
	})
	departures := make([]Departure, 0, len(owned))
	for _, p := range owned {
		d, err := r.Leave(p.ID, owner)
		if err != nil {
			continue
		}
		departures = append(departures, d)
	}
	return departures
}

func (r *CallRoom) Participant(id ParticipantID) (Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// Participants is sorted by id so notifications are stable in tests and logs.
func (r *CallRoom) Participants() []Participant {
	res := lo.Values(r.participants)
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *CallRoom) IsEmpty() bool {
	return len(r.participants) == 0
}

func (r *CallRoom) others(id ParticipantID) []Participant {
	return lo.Filter(r.Participants(), func(p Participant, _ int) bool {
		return p.ID != id
	})
}

// Owners returns each distinct owner of participants once.
func Owners(participants []Participant) []UserID {
	return lo.Uniq(lo.Map(participants, func(p Participant, _ int) UserID {
		return p.Owner
	}))
}
