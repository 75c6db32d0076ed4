package runtime

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/domain/event"
	"duo-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type State int32

const (
	Connecting State = iota
	Admitted
	Active
	Terminated
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Admitted:
		return "admitted"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is the lifecycle of one connection handle.
// Inbound events are handled one at a time, in arrival order.
type Session struct {
	o     *Orchestrator
	conn  contract.Connection
	user  domain.User
	state atomic.Int32
	once  sync.Once
	log   *slog.Logger
}

func NewSession(o *Orchestrator, conn contract.Connection) *Session {
	return &Session{o: o, conn: conn, log: o.log.With("conn_id", conn.ID())}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// User is the admitted identity, zero before admission.
func (s *Session) User() domain.User {
	return s.user
}

// Run admits the connection then processes its events until the transport
// closes or ctx is cancelled. A rejected connection is told why before being closed.
func (s *Session) Run(ctx context.Context) error {
	user, err := s.o.Admit(ctx, s.conn.Token())
	if err != nil {
		s.reject(ctx, err)
		return err
	}

	s.admit(ctx, user)
	defer s.terminate(ctx)

	s.state.Store(int32(Active))
	for {
		in, err := s.conn.Next(ctx)
		switch {
		case err == nil:
			s.handle(ctx, in)
		case errors.Is(err, errors.ErrInvalidPayload):
			s.log.Debug("Malformed frame", "error", err)
			s.replyError(ctx, "Invalid payload.")
		default:
			s.log.Debug("Connection closed", "reason", err)
			return nil
		}
	}
}

func (s *Session) reject(ctx context.Context, err error) {
	s.state.Store(int32(Terminated))

	notice := event.NewOutbound(event.Error, errors.RejectionMessage(err))
	if errors.IsRejection(err) {
		s.log.Info("Connection rejected", "reason", err)
		notice = event.NewOutbound(event.Logout, event.Rejection{Message: errors.RejectionMessage(err), Logout: true})
	} else {
		s.log.Warn("Connection admission failed", "error", err)
	}
	s.reply(ctx, notice)

	if err := s.conn.Close(); err != nil {
		s.log.Debug("Closing rejected connection", "error", err)
	}
}

func (s *Session) admit(ctx context.Context, user domain.User) {
	s.user = user
	s.log = s.log.With("user_id", user.ID)
	s.state.Store(int32(Admitted))

	if s.o.presence.Join(user.ID, s.conn.ID()) {
		s.log.Info("User online")
	}
	s.o.broadcaster.Admit(user.ID, s.conn)
	s.o.broadcastOnline(ctx)
}

// terminate releases the connection exactly once, whatever the number of callers.
func (s *Session) terminate(ctx context.Context) {
	s.once.Do(func() {
		s.state.Store(int32(Terminated))
		// The session context is usually gone by now
		ctx := context.WithoutCancel(ctx)

		s.o.broadcaster.Remove(s.user.ID, s.conn.ID())
		if s.o.presence.Leave(s.user.ID, s.conn.ID()) {
			s.log.Info("User offline")
		}
		s.o.broadcastOnline(ctx)
		if err := s.conn.Close(); err != nil {
			s.log.Debug("Closing connection", "error", err)
		}
	})
}

func (s *Session) handle(ctx context.Context, in event.Inbound) {
	var err error
	switch in.Name {
	case event.MessagePage:
		err = s.messagePage(ctx, in.Data)
	case event.NewMessage:
		err = s.newMessage(ctx, in.Data)
	case event.Sidebar:
		err = s.sidebar(ctx)
	case event.Ping:
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownEvent, in.Name)
	}
	if err == nil {
		return
	}

	s.log.Warn("Event failed", "event", in.Name, "error", err)
	s.replyError(ctx, errorMessage(in.Name, err))
}

// messagePage sends the peer's profile then the thread with that peer,
// creating the conversation on first visit.
func (s *Session) messagePage(ctx context.Context, data json.RawMessage) error {
	peerID, err := decodePeerID(data)
	if err != nil {
		return err
	}

	storeCtx, cancel := s.o.storeContext(ctx)
	defer cancel()

	peer, err := s.o.accounts.FindByID(storeCtx, peerID)
	if errors.Is(err, errors.ErrUnknownUser) {
		return fmt.Errorf("%w: %v", errors.ErrInvalidParticipant, err)
	}
	if err != nil {
		return err
	}
	s.reply(ctx, event.NewOutbound(event.MessageUser, event.ToUserSummary(peer, s.o.presence.IsOnline(peer.ID))))

	if _, err := s.o.conversations.FindOrCreate(storeCtx, s.user.ID, peer.ID); err != nil {
		return err
	}
	history, err := s.o.conversations.History(storeCtx, s.user.ID, peer.ID)
	if err != nil {
		return err
	}
	s.reply(ctx, event.NewOutbound(event.Message, event.ToMessageViews(history)))
	return nil
}

// newMessage stores the message then pushes the whole thread to every
// connection of both participants.
func (s *Session) newMessage(ctx context.Context, data json.RawMessage) error {
	var req event.NewMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if req.Sender != s.user.ID || (req.MsgByUserID != "" && req.MsgByUserID != req.Sender) {
		return fmt.Errorf("%w: sender %q is not the connected user", errors.ErrInvalidPayload, req.Sender)
	}

	storeCtx, cancel := s.o.storeContext(ctx)
	defer cancel()

	conversation, err := s.o.conversations.FindOrCreate(storeCtx, req.Sender, req.Receiver)
	if err != nil {
		return err
	}
	if _, err := s.o.conversations.AppendMessage(storeCtx, conversation.ID, domain.Message{
		Text:        req.Text,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		MsgByUserID: req.Sender,
	}); err != nil {
		return err
	}
	history, err := s.o.conversations.History(storeCtx, req.Sender, req.Receiver)
	if err != nil {
		return err
	}

	thread := event.NewOutbound(event.Message, event.ToMessageViews(history))
	s.o.broadcaster.EmitToUser(ctx, req.Sender, thread)
	s.o.broadcaster.EmitToUser(ctx, req.Receiver, thread)

	// The message is stored: a failed sidebar refresh is only logged
	for _, userID := range []string{req.Sender, req.Receiver} {
		if err := s.pushConversations(storeCtx, ctx, userID); err != nil {
			s.log.Warn("Conversation list refresh failed", "event", event.NewMessage, "peer_id", userID, "error", err)
		}
	}
	return nil
}

func (s *Session) sidebar(ctx context.Context) error {
	storeCtx, cancel := s.o.storeContext(ctx)
	defer cancel()

	summaries, err := s.o.conversations.ListConversations(storeCtx, s.user.ID)
	if err != nil {
		return err
	}
	s.reply(ctx, event.NewOutbound(event.Conversation, event.ToConversationViews(summaries, s.o.presence.IsOnline)))
	return nil
}

func (s *Session) pushConversations(storeCtx, ctx context.Context, userID string) error {
	summaries, err := s.o.conversations.ListConversations(storeCtx, userID)
	if err != nil {
		return err
	}
	s.o.broadcaster.EmitToUser(ctx, userID,
		event.NewOutbound(event.Conversation, event.ToConversationViews(summaries, s.o.presence.IsOnline)))
	return nil
}

// reply writes to this connection only.
func (s *Session) reply(ctx context.Context, e event.Outbound) {
	replyCtx, cancel := context.WithTimeout(ctx, s.o.replyTimeout)
	defer cancel()
	if err := s.conn.Consume(replyCtx, e); err != nil {
		s.log.Warn("Reply failed", "event", e.Name, "error", fmt.Errorf("%w: %v", errors.ErrTransportFailure, err))
	}
}

func (s *Session) replyError(ctx context.Context, message string) {
	s.reply(ctx, event.NewOutbound(event.Error, message))
}

// decodePeerID accepts the bare id sent by browser clients as well as an object.
func decodePeerID(data json.RawMessage) (string, error) {
	var req event.MessagePageRequest
	if err := json.Unmarshal(data, &req.PeerID); err != nil {
		var obj struct {
			PeerID string `json:"peerId"`
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
		req.PeerID = cmp.Or(obj.PeerID, obj.UserID)
	}
	if err := validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return req.PeerID, nil
}

func errorMessage(name event.Name, err error) string {
	switch {
	case errors.Is(err, errors.ErrUnknownEvent):
		return "Unknown event."
	case errors.Is(err, errors.ErrInvalidPayload):
		return "Invalid payload."
	case errors.Is(err, errors.ErrInvalidParticipant):
		return "User not found."
	case name == event.NewMessage:
		return "Unable to send message, try again later."
	default:
		return "Unable to load conversation, try again later."
	}
}
