package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// CallRooms is the table of live call rooms.
// A room is created by its first join and deleted with its last leave.
type CallRooms struct {
	mu    sync.RWMutex
	rooms map[domain.CallRoomID]*domain.CallRoom
}

func NewCallRooms() *CallRooms {
	return &CallRooms{rooms: make(map[domain.CallRoomID]*domain.CallRoom)}
}

func (c *CallRooms) Join(p domain.Participant) ([]domain.Participant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms[p.RoomID]
	if !ok {
		room = domain.NewCallRoom(p.RoomID)
	}
	others, err := room.Join(p)
	if err != nil {
		return nil, err
	}
	c.rooms[p.RoomID] = room
	return others, nil
}

func (c *CallRooms) Leave(roomID domain.CallRoomID, participantID domain.ParticipantID, owner domain.UserID) (domain.Departure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms[roomID]
	if !ok {
		return domain.Departure{}, errors.Wrap(errors.ErrNotAMember, "call room "+string(roomID)+" does not exist")
	}
	departure, err := room.Leave(participantID, owner)
	if err != nil {
		return domain.Departure{}, err
	}
	if departure.RoomClosed {
		delete(c.rooms, roomID)
	}
	return departure, nil
}

// Route checks that from belongs to owner and returns the target participant.
// A missing target is not an error: ok is false and the signal must be dropped.
func (c *CallRooms) Route(roomID domain.CallRoomID, from, to domain.ParticipantID, owner domain.UserID) (domain.Participant, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	room, ok := c.rooms[roomID]
	if !ok {
		return domain.Participant{}, false, errors.Wrap(errors.ErrNotAMember, "call room "+string(roomID)+" does not exist")
	}
	sender, ok := room.Participant(from)
	if !ok || sender.Owner != owner {
		return domain.Participant{}, false, errors.Wrap(errors.ErrNotAMember, "participant "+string(from)+" is not in call room "+string(roomID))
	}
	target, ok := room.Participant(to)
	return target, ok, nil
}

// LeaveAll runs the leave transition for every participant owned by owner, in every room.
func (c *CallRooms) LeaveAll(owner domain.UserID) []domain.Departure {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := lo.Keys(c.rooms)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var departures []domain.Departure
	for _, id := range ids {
		room := c.rooms[id]
		departures = append(departures, room.LeaveAll(owner)...)
		if room.IsEmpty() {
			delete(c.rooms, id)
		}
	}
	return departures
}

func (c *CallRooms) Participants(roomID domain.CallRoomID) []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	return room.Participants()
}

func (c *CallRooms) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}
