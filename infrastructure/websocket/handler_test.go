package websocket

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"duo-chat/auth"
	"duo-chat/domain/event"
	"duo-chat/repositories"
	"duo-chat/runtime"
	"duo-chat/services"

	"github.com/dgraph-io/badger/v4"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testPassword = "ComplexPass123!"

type testServer struct {
	*httptest.Server
	tokens *auth.TokenIssuer
}

func newTestServer(t *testing.T, origins ...string) testServer {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	log := slog.Default()
	users := repositories.NewUserRepository(db, log)
	conversations := repositories.NewConversationRepository(db, log)
	tokens := auth.NewTokenIssuer("websocket-test-secret-0123456789", time.Hour)
	resolver := auth.NewResolver(tokens, users, time.Second, log)
	orchestrator := runtime.NewOrchestrator(log, resolver, users, conversations,
		runtime.NewPresence(), runtime.NewBroadcaster(time.Second, log), 2*time.Second, time.Second)

	handler := NewHandler(log, orchestrator, services.NewAuthService(users, tokens, log),
		NewOriginPolicy(origins, log),
		ConnectionConfig{BufferSize: 16, MaxMessageSize: 4096, RateBurst: 50, RateInterval: time.Second},
		func() any { return map[string]int{"connections": 0} })

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		srv.Close()
		_ = db.Close()
	})
	return testServer{Server: srv, tokens: tokens}
}

func (s testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// register creates an account and returns its id and token.
func (s testServer) register(t *testing.T, name string) (string, string) {
	t.Helper()
	resp, body := s.post(t, "/api/register", auth.RegisterRequest{
		Name: name, Email: name + "@duo.chat", Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := body["token"].(string)
	claims, err := s.tokens.Validate(token)
	require.NoError(t, err)
	return claims.UserID, token
}

func (s testServer) dial(t *testing.T, token string, header http.Header) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(s.wsURL()+"?token="+token, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func send(t *testing.T, conn *gorilla.Conn, name event.Name, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(event.Envelope{Event: name, Data: data}))
}

// readEvent skips frames until one named name arrives.
func readEvent(t *testing.T, conn *gorilla.Conn, name event.Name) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var envelope event.Envelope
		require.NoError(t, conn.ReadJSON(&envelope))
		if envelope.Event == name {
			return envelope.Data
		}
	}
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given a registered account
	srv.register(t, "alice")

	// Then the email cannot be taken twice
	resp, body := srv.post(t, "/api/register", auth.RegisterRequest{Name: "other", Email: "alice@duo.chat", Password: testPassword})
	req.Equal(http.StatusConflict, resp.StatusCode)
	req.Equal(true, body["error"])

	// And a weak password is refused
	resp, _ = srv.post(t, "/api/register", auth.RegisterRequest{Name: "bob", Email: "bob@duo.chat", Password: "short"})
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// When logging in with the right password
	resp, body = srv.post(t, "/api/login", auth.LoginRequest{Email: "alice@duo.chat", Password: testPassword})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NotEmpty(body["token"])

	// When logging in with a wrong password
	resp, body = srv.post(t, "/api/login", auth.LoginRequest{Email: "alice@duo.chat", Password: "WrongPass123!"})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Equal("Invalid email or password.", body["message"])
}

func TestHandler_InvalidBody(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/login", "application/json", strings.NewReader("{not json"))
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_RejectedTokenGetsLogout(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// When connecting with a forged token
	conn := srv.dial(t, "garbage", nil)

	// Then the client is told to log out before the socket closes
	var rejection event.Rejection
	req.NoError(json.Unmarshal(readEvent(t, conn, event.Logout), &rejection))
	req.Equal(event.Rejection{Message: "Invalid token", Logout: true}, rejection)

	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestHandler_MessageExchange(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	aliceID, aliceToken := srv.register(t, "alice")
	bobID, bobToken := srv.register(t, "bob")

	// Given both users connected
	alice := srv.dial(t, aliceToken, nil)
	readEvent(t, alice, event.OnlineUser)
	bob := srv.dial(t, bobToken, nil)

	var online []string
	req.NoError(json.Unmarshal(readEvent(t, bob, event.OnlineUser), &online))
	req.ElementsMatch([]string{aliceID, bobID}, online)

	// When alice opens the conversation with bob
	send(t, alice, event.MessagePage, bobID)

	var peer event.UserSummary
	req.NoError(json.Unmarshal(readEvent(t, alice, event.MessageUser), &peer))
	req.Equal(bobID, peer.ID)
	req.True(peer.Online)

	var thread []event.MessageView
	req.NoError(json.Unmarshal(readEvent(t, alice, event.Message), &thread))
	req.Empty(thread)

	// And sends a message
	send(t, alice, event.NewMessage, event.NewMessageRequest{Sender: aliceID, Receiver: bobID, Text: "hello"})

	// Then bob receives the thread
	req.NoError(json.Unmarshal(readEvent(t, bob, event.Message), &thread))
	req.Len(thread, 1)
	req.Equal("hello", thread[0].Text)
	req.Equal(aliceID, thread[0].MsgByUserID)
}

func TestHandler_MalformedFrameKeepsConnection(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	_, token := srv.register(t, "alice")
	conn := srv.dial(t, token, nil)
	readEvent(t, conn, event.OnlineUser)

	// When a frame is not an envelope
	req.NoError(conn.WriteMessage(gorilla.TextMessage, []byte("not json")))

	var message string
	req.NoError(json.Unmarshal(readEvent(t, conn, event.Error), &message))
	req.Equal("Invalid payload.", message)

	// Then the connection still serves events
	send(t, conn, event.Sidebar, nil)
	var conversations []event.ConversationView
	req.NoError(json.Unmarshal(readEvent(t, conn, event.Conversation), &conversations))
	req.Empty(conversations)
}

func TestHandler_BearerHeader(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	aliceID, token := srv.register(t, "alice")

	conn, _, err := gorilla.DefaultDialer.Dial(srv.wsURL(), http.Header{"Authorization": {"Bearer " + token}})
	req.NoError(err)
	defer conn.Close()

	var online []string
	req.NoError(json.Unmarshal(readEvent(t, conn, event.OnlineUser), &online))
	req.Equal([]string{aliceID}, online)
}

func TestHandler_BlockedOrigin(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, "https://app.duo.chat")
	_, token := srv.register(t, "alice")

	// When a browser from another site opens a socket
	_, resp, err := gorilla.DefaultDialer.Dial(srv.wsURL()+"?token="+token, http.Header{"Origin": {"https://evil.example"}})

	// Then the upgrade is refused
	req.ErrorIs(err, gorilla.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	// And the configured origin is accepted
	conn := srv.dial(t, token, http.Header{"Origin": {"https://APP.duo.chat"}})
	readEvent(t, conn, event.OnlineUser)
}

func TestHandler_Health(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()

	var body map[string]any
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("ok", body["status"])
	req.Equal(float64(0), body["onlineUsers"])
	req.Contains(body, "process")
}
