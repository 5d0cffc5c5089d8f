package runtime

import (
	"chat-relay/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMembership_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()

	req.True(membership.Join("u1", "general"))
	req.False(membership.Join("u1", "general"))

	req.Equal([]domain.UserID{"u1"}, membership.MembersOf("general"))
	req.Equal([]domain.RoomID{"general"}, membership.RoomsOf("u1"))
}

func TestMembership_Leave_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	membership.Join("u1", "general")
	membership.Join("u2", "general")

	req.True(membership.Leave("u1", "general"))
	req.False(membership.Leave("u1", "general"))
	req.False(membership.Leave("u1", "never-joined"))

	req.Equal([]domain.UserID{"u2"}, membership.MembersOf("general"))
	req.Empty(membership.RoomsOf("u1"))
}

func TestMembership_Last_Leave_Drops_Room(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	membership.Join("u1", "general")
	req.Equal(1, membership.RoomCount())

	membership.Leave("u1", "general")

	req.Equal(0, membership.RoomCount())
	req.Empty(membership.MembersOf("general"))
}

func TestMembership_Clear_Removes_Every_Room(t *testing.T) {
	req := require.New(t)
	membership := NewMembership()
	membership.Join("u1", "random")
	membership.Join("u1", "general")
	membership.Join("u2", "general")

	// When u1 goes away
	rooms := membership.Clear("u1")

	// Then u1 is in no room and u2 is untouched
	req.Equal([]domain.RoomID{"general", "random"}, rooms)
	req.Empty(membership.RoomsOf("u1"))
	req.False(membership.IsMember("u1", "general"))
	req.True(membership.IsMember("u2", "general"))
	req.Empty(membership.MembersOf("random"))
	req.Empty(membership.Clear("u1"))
}
