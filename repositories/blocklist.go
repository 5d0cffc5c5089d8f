package repositories

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const blocklistPrefix = "blocklist:"

// BlocklistRepository keeps the moderation dictionary.
// Words live in the keys, values are empty.
type BlocklistRepository struct {
	db *badger.DB
}

func NewBlocklistRepository(db *badger.DB) *BlocklistRepository {
	return &BlocklistRepository{db: db}
}

// AddWords is idempotent; blank words are skipped.
func (b *BlocklistRepository) AddWords(ctx context.Context, words ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if err := wb.Set([]byte(blocklistPrefix+word), nil); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *BlocklistRepository) Words(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var words []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(blocklistPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return words, err
}
