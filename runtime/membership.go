package runtime

import (
	"chat-relay/domain"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type Set[T comparable] map[T]struct{}

// Membership tracks which chat rooms each identity joined.
// Two indexes are kept in sync so that MembersOf never scans every identity.
// Nothing here is persisted and nothing here is authorized.
type Membership struct {
	mu      sync.RWMutex
	rooms   map[domain.UserID]Set[domain.RoomID]
	members map[domain.RoomID]Set[domain.UserID]
}

func NewMembership() *Membership {
	return &Membership{
		rooms:   make(map[domain.UserID]Set[domain.RoomID]),
		members: make(map[domain.RoomID]Set[domain.UserID]),
	}
}

// Join is idempotent; it reports whether the membership is new.
func (m *Membership) Join(userID domain.UserID, roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[userID][roomID]; ok {
		return false
	}
	if _, ok := m.rooms[userID]; !ok {
		m.rooms[userID] = make(Set[domain.RoomID])
	}
	if _, ok := m.members[roomID]; !ok {
		m.members[roomID] = make(Set[domain.UserID])
	}
	m.rooms[userID][roomID] = struct{}{}
	m.members[roomID][userID] = struct{}{}
	return true
}

// Leave is idempotent; it reports whether a membership was removed.
func (m *Membership) Leave(userID domain.UserID, roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leave(userID, roomID)
}

// Clear drops every membership of userID and returns the rooms it was in.
func (m *Membership) Clear(userID domain.UserID) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := lo.Keys(m.rooms[userID])
	for _, roomID := range rooms {
		m.leave(userID, roomID)
	}
	delete(m.rooms, userID)
	sortRooms(rooms)
	return rooms
}

func (m *Membership) RoomsOf(userID domain.UserID) []domain.RoomID {
	m.mu.RLock()
	rooms := lo.Keys(m.rooms[userID])
	m.mu.RUnlock()
	sortRooms(rooms)
	return rooms
}

func (m *Membership) MembersOf(roomID domain.RoomID) []domain.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.members[roomID])
}

func (m *Membership) IsMember(userID domain.UserID, roomID domain.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[roomID][userID]
	return ok
}

// RoomCount is the number of rooms with at least one member.
func (m *Membership) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members)
}

func (m *Membership) leave(userID domain.UserID, roomID domain.RoomID) bool {
	if _, ok := m.rooms[userID][roomID]; !ok {
		return false
	}
	delete(m.rooms[userID], roomID)
	if len(m.rooms[userID]) == 0 {
		delete(m.rooms, userID)
	}
	delete(m.members[roomID], userID)
	// No empty sets left behind
	if len(m.members[roomID]) == 0 {
		delete(m.members, roomID)
	}
	return true
}

func sortRooms(rooms []domain.RoomID) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
}
