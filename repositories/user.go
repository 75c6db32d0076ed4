//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duo-chat/domain"
	"duo-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, user domain.User, hashedPassword string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, userID string) (domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type UserRepository struct {
	txn txnRunner
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{txn: txnRunner{db: db, log: log}}
}

// User is the stored account. Only the repository and the account service
// ever see PasswordHash; everybody else gets a domain.User.
type User struct {
	domain.User
	PasswordHash string
}

const (
	userFieldID         = 1
	userFieldName       = 2
	userFieldEmail      = 3
	userFieldProfilePic = 4
	userFieldHash       = 5
	userFieldCreatedAt  = 6
)

// CreateUser persists a new account with an already hashed password and
// returns its profile. Emails are unique, case-insensitively.
func (u *UserRepository) CreateUser(ctx context.Context, user domain.User, hashedPassword string) (domain.User, error) {
	user.ID = uuid.NewString()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = time.Now().UTC()
	data := encodeUser(User{User: user, PasswordHash: hashedPassword})

	err := u.txn.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, emailKey(user.Email))
		if err != nil {
			return err
		}
		if taken {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(user.ID), data); err != nil {
			return err
		}
		return txn.Set(emailKey(user.Email), []byte(user.ID))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// GetUserByEmail returns the stored account including its password hash.
func (u *UserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := u.txn.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUnknownUser
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	return user, err
}

// FindByID returns the profile projection of an account, or errors.ErrUnknownUser.
func (u *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	var user User
	err := u.txn.view(ctx, func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, userID)
		return err
	})
	return user.User, err
}

// DeleteUser removes an account. Conversations that reference it are kept.
func (u *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	return u.txn.update(ctx, func(txn *badger.Txn) error {
		user, err := getUser(txn, userID)
		if err != nil {
			return err
		}
		if err := txn.Delete(emailKey(user.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(userID))
	})
}

func getUser(txn *badger.Txn, userID string) (User, error) {
	if userID == "" {
		return User{}, errors.ErrUnknownUser
	}
	item, err := txn.Get(userKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("%w: %s", errors.ErrUnknownUser, userID)
	}
	if err != nil {
		return User{}, err
	}
	var user User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	return user, err
}

func encodeUser(u User) []byte {
	var w recordWriter
	w.string(userFieldID, u.ID)
	w.string(userFieldName, u.Name)
	w.string(userFieldEmail, u.Email)
	w.string(userFieldProfilePic, u.ProfilePic)
	w.string(userFieldHash, u.PasswordHash)
	w.time(userFieldCreatedAt, u.CreatedAt)
	return w.b
}

func decodeUser(b []byte) (User, error) {
	f, err := readRecord(b)
	if err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return User{
		User: domain.User{
			ID:         f.strings[userFieldID],
			Name:       f.strings[userFieldName],
			Email:      f.strings[userFieldEmail],
			ProfilePic: f.strings[userFieldProfilePic],
			CreatedAt:  f.time(userFieldCreatedAt),
		},
		PasswordHash: f.strings[userFieldHash],
	}, nil
}
