package repositories

import (
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders raw badger entries for the debug inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, messagePrefix):
		message, err := decodeMessage(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		target := "room:" + string(message.Target.RoomID)
		if !message.Target.IsRoom() {
			target = "dm:" + string(message.Target.RecipientID)
		}
		row.Detail = fmt.Sprintf("%s -> %s : %s", message.SenderID, target, message.Content)
	case strings.HasPrefix(key, reactionPrefix):
		reaction, err := decodeReaction(val)
		if err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "REACTION"
		row.Detail = fmt.Sprintf("%s %s on %s", reaction.UserID, reaction.Emoji, reaction.MessageID)
	case strings.HasPrefix(key, userPrefix):
		row.Type = "USER"
	}
	return row
}
