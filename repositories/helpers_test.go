package repositories

import (
	"context"
	"log/slog"
	"testing"

	"duo-chat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUser(t *testing.T, users *UserRepository, name string) domain.User {
	t.Helper()
	user, err := users.CreateUser(context.Background(), domain.User{Name: name, Email: name + "@duo.chat"}, "hash-"+name)
	require.NoError(t, err)
	return user
}

func newRepositories(t *testing.T) (*UserRepository, *ConversationRepository) {
	db := openDB(t)
	return NewUserRepository(db, slog.Default()), NewConversationRepository(db, slog.Default())
}
