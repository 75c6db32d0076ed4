// Package client is a small Go client of the chat server, used by the smoke
// tester and the end-to-end suite.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"duo-chat/domain/event"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// Client talks to the HTTP account endpoints of one server.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type Credentials struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Register creates the account and returns its token.
func (c *Client) Register(ctx context.Context, creds Credentials) (string, error) {
	return c.token(ctx, "/api/register", creds)
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	return c.token(ctx, "/api/login", Credentials{Email: email, Password: password})
}

func (c *Client) token(ctx context.Context, path string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decoding response: %w", path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%s: %d %s", path, resp.StatusCode, out.Message)
	}
	return out.Token, nil
}

// Connect opens a realtime session with token.
func (c *Client) Connect(ctx context.Context, token string) (*Session, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u.Redacted(), err)
	}
	return &Session{conn: conn}, nil
}

// Session is one websocket connection. Not safe for concurrent writers.
type Session struct {
	conn *websocket.Conn
}

func (s *Session) Send(name event.Name, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.conn.WriteJSON(event.Envelope{Event: name, Data: data})
}

// Next blocks for the next server frame, at most timeout.
func (s *Session) Next(timeout time.Duration) (event.Envelope, error) {
	var envelope event.Envelope
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return envelope, err
	}
	err := s.conn.ReadJSON(&envelope)
	return envelope, err
}

// WaitFor skips frames until one named name arrives and decodes its payload into dst.
func (s *Session) WaitFor(name event.Name, timeout time.Duration, dst any) error {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("no %q frame within %s", name, timeout)
		}
		envelope, err := s.Next(remaining)
		if err != nil {
			return err
		}
		if envelope.Event != name {
			continue
		}
		if dst == nil {
			return nil
		}
		return json.Unmarshal(envelope.Data, dst)
	}
}

func (s *Session) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}

// UserID reads the account id carried by a token. The signature is not
// checked, the server does that on every call.
func UserID(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	id, _ := claims["user_id"].(string)
	if id == "" {
		return claims.GetSubject()
	}
	return id, nil
}
