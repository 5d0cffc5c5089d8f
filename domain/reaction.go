package domain

import "github.com/samber/lo"

type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// Reaction is unique per (message, user, emoji); the store enforces it.
type Reaction struct {
	MessageID string
	UserID    UserID
	Emoji     string
}

// CountEmoji recomputes the count of one emoji from the full reaction set.
func CountEmoji(reactions []Reaction, emoji string) int {
	return lo.CountBy(reactions, func(r Reaction) bool {
		return r.Emoji == emoji
	})
}
