package client

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"duo-chat/auth"
	"duo-chat/domain/event"
	"duo-chat/infrastructure/websocket"
	"duo-chat/repositories"
	"duo-chat/runtime"
	"duo-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *auth.TokenIssuer) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	log := slog.Default()
	users := repositories.NewUserRepository(db, log)
	tokens := auth.NewTokenIssuer("client-test-secret-0123456789abcdef", time.Hour)
	orchestrator := runtime.NewOrchestrator(log, auth.NewResolver(tokens, users, time.Second, log), users,
		repositories.NewConversationRepository(db, log), runtime.NewPresence(), runtime.NewBroadcaster(time.Second, log),
		2*time.Second, time.Second)
	handler := websocket.NewHandler(log, orchestrator, services.NewAuthService(users, tokens, log),
		websocket.NewOriginPolicy([]string{"*"}, log),
		websocket.ConnectionConfig{BufferSize: 16, MaxMessageSize: 4096, RateBurst: 50, RateInterval: time.Second}, nil)

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		srv.Close()
		_ = db.Close()
	})
	return srv, tokens
}

func TestClient_Conversation(t *testing.T) {
	req := require.New(t)
	srv, tokens := newServer(t)
	ctx := context.Background()
	c := New(srv.URL, time.Second)

	// Given two accounts
	aliceToken, err := c.Register(ctx, Credentials{Name: "alice", Email: "alice@duo.chat", Password: "ComplexPass123!"})
	req.NoError(err)
	_, err = c.Register(ctx, Credentials{Name: "bob", Email: "bob@duo.chat", Password: "ComplexPass123!"})
	req.NoError(err)
	bobToken, err := c.Login(ctx, "bob@duo.chat", "ComplexPass123!")
	req.NoError(err)

	alice, err := tokens.Validate(aliceToken)
	req.NoError(err)
	bob, err := tokens.Validate(bobToken)
	req.NoError(err)

	aliceSession, err := c.Connect(ctx, aliceToken)
	req.NoError(err)
	defer aliceSession.Close()
	bobSession, err := c.Connect(ctx, bobToken)
	req.NoError(err)
	defer bobSession.Close()
	req.NoError(bobSession.WaitFor(event.OnlineUser, 2*time.Second, nil))

	// When alice writes to bob
	req.NoError(aliceSession.Send(event.NewMessage, event.NewMessageRequest{
		Sender: alice.UserID, Receiver: bob.UserID, Text: "hi bob",
	}))

	// Then bob gets the thread
	var thread []event.MessageView
	req.NoError(bobSession.WaitFor(event.Message, 2*time.Second, &thread))
	req.Len(thread, 1)
	req.Equal("hi bob", thread[0].Text)
}

func TestClient_LoginFailure(t *testing.T) {
	req := require.New(t)
	srv, _ := newServer(t)

	_, err := New(srv.URL, time.Second).Login(context.Background(), "nobody@duo.chat", "ComplexPass123!")

	req.ErrorContains(err, "401")
}

func TestUserID(t *testing.T) {
	req := require.New(t)
	tokens := auth.NewTokenIssuer("client-test-secret-0123456789abcdef", time.Hour)
	token, err := tokens.Generate("user-42")
	req.NoError(err)

	id, err := UserID(token)
	req.NoError(err)
	req.Equal("user-42", id)

	_, err = UserID("garbage")
	req.Error(err)
}
