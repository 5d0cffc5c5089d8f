package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	limit := flag.Int("limit", 100, "Maximum number of messages, 0 for all")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Missing badger path: use -db or BADGER_FILEPATH")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := repositories.NewMessageRepository(db, logs.GetLoggerFromString("WARN"))
	messages, err := repository.Messages(*limit)
	if err != nil {
		log.Fatal(err)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Message ID", "Time", "Sender", "Target", "Content", "Reactions"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	ctx := context.Background()
	reactionCount := 0
	for _, message := range messages {
		reactions, err := repository.ListReactions(ctx, message.ID)
		if err != nil {
			log.Fatal(err)
		}
		reactionCount += len(reactions)

		// First 8 characters are enough to tell messages apart
		displayID := message.ID
		if len(displayID) > 8 {
			displayID = displayID[:8]
		}

		table.Append([]string{
			displayID,
			message.CreatedAt.Format("2006-01-02 15:04:05"),
			string(message.SenderID),
			describeTarget(message.Target),
			message.Content,
			summarize(reactions),
		})
	}
	table.Render()

	fmt.Println()
	color.New(color.FgGreen, color.OpBold).Printf("%d messages", len(messages))
	fmt.Print(", ")
	color.New(color.FgCyan).Printf("%d reactions\n", reactionCount)
}

func describeTarget(target domain.Target) string {
	if target.IsRoom() {
		return "#" + string(target.RoomID)
	}
	return "@" + string(target.RecipientID)
}

// summarize renders "👍:2 🎉:1", emojis sorted for stable output.
func summarize(reactions []domain.Reaction) string {
	emojis := lo.Uniq(lo.Map(reactions, func(r domain.Reaction, _ int) string { return r.Emoji }))
	sort.Strings(emojis)
	parts := lo.Map(emojis, func(emoji string, _ int) string {
		return fmt.Sprintf("%s:%d", emoji, domain.CountEmoji(reactions, emoji))
	})
	return strings.Join(parts, " ")
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
