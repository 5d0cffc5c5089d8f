package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// UserRepository resolves display names for outbound messages.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// DisplayName returns an empty name for an unknown identity.
func (u *UserRepository) DisplayName(ctx context.Context, userID domain.UserID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value structpb.Struct
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return proto.Unmarshal(val, &value)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value.GetFields()["display_name"].GetStringValue(), nil
}

func (u *UserRepository) SaveDisplayName(ctx context.Context, userID domain.UserID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := structpb.NewStruct(map[string]any{
		"user_id":      string(userID),
		"display_name": name,
	})
	if err != nil {
		return err
	}
	data, err := proto.Marshal(value)
	if err != nil {
		return err
	}
	return u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(userID), data)
	})
}

const userPrefix = "user:"

func userKey(userID domain.UserID) []byte {
	return []byte(userPrefix + string(userID))
}
