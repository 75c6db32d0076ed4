package repositories

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"duo-chat/domain"
	"duo-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	convFieldID           = 1
	convFieldSender       = 2
	convFieldReceiver     = 3
	convFieldMessageCount = 4
	convFieldCreatedAt    = 5
	convFieldUpdatedAt    = 6
)

const (
	msgFieldID             = 1
	msgFieldConversationID = 2
	msgFieldSeq            = 3
	msgFieldText           = 4
	msgFieldImageURL       = 5
	msgFieldVideoURL       = 6
	msgFieldMsgByUserID    = 7
	msgFieldSeen           = 8
	msgFieldCreatedAt      = 9
)

// ConversationRepository stores conversations and their messages in BadgerDB.
//
// Uniqueness of a conversation per unordered pair relies on badger's optimistic
// transactions: two concurrent creators both read the missing pair key, the
// second commit fails with badger.ErrConflict and its retry reads the winner.
type ConversationRepository struct {
	txn txnRunner
	now func() time.Time
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) *ConversationRepository {
	return &ConversationRepository{
		txn: txnRunner{db: db, log: log},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreate returns the conversation of the pair, creating it on first use.
// Both users must exist.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, userA, userB string) (domain.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return domain.Conversation{}, fmt.Errorf("%w: cannot pair %q with %q", errors.ErrInvalidParticipant, userA, userB)
	}
	key := domain.NewPairKey(userA, userB)

	var conversation domain.Conversation
	err := r.txn.update(ctx, func(txn *badger.Txn) error {
		existing, found, err := getConversation(txn, key)
		if err != nil {
			return err
		}
		if found {
			conversation = existing
			return nil
		}

		for _, userID := range []string{userA, userB} {
			ok, err := exists(txn, userKey(userID))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: unknown user %s", errors.ErrInvalidParticipant, userID)
			}
		}

		now := r.now()
		conversation = domain.Conversation{
			ID:        uuid.New(),
			Key:       key,
			Sender:    userA,
			Receiver:  userB,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return createConversation(txn, conversation)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

// History returns the pair's messages in append order. It never creates anything:
// a pair without conversation yields an empty slice.
func (r *ConversationRepository) History(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := r.txn.view(ctx, func(txn *badger.Txn) error {
		conversation, found, err := getConversation(txn, domain.NewPairKey(userA, userB))
		if err != nil || !found {
			return err
		}
		messages, err = listMessages(txn, conversation.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AppendMessage persists message, links it at the end of the conversation and
// bumps the conversation's last activity, all in a single transaction.
// A message body is only reachable through its link, so a failed append leaves
// nothing visible.
func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID uuid.UUID, message domain.Message) (domain.Message, error) {
	if !message.HasContent() {
		return domain.Message{}, fmt.Errorf("%w: empty message", errors.ErrInvalidPayload)
	}

	var stored domain.Message
	err := r.txn.update(ctx, func(txn *badger.Txn) error {
		key, err := getPairKey(txn, conversationID)
		if err != nil {
			return err
		}
		conversation, found, err := getConversation(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: unknown conversation %s", errors.ErrInvalidParticipant, conversationID)
		}
		if !conversation.Key.Has(message.MsgByUserID) {
			return fmt.Errorf("%w: %s is not part of conversation %s",
				errors.ErrInvalidParticipant, message.MsgByUserID, conversationID)
		}

		stored = message
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = r.now()
		}
		stored.ConversationID = conversation.ID
		stored.Seq = conversation.MessageCount

		if err := txn.Set(messageBodyKey(stored.ID), encodeMessage(stored)); err != nil {
			return err
		}
		if err := txn.Set(messageLinkKey(conversation.ID, stored.Seq), []byte(stored.ID.String())); err != nil {
			return err
		}

		conversation.MessageCount++
		conversation.UpdatedAt = stored.CreatedAt
		return txn.Set(pairKey(conversation.Key), encodeConversation(conversation))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return stored, nil
}

// ListConversations returns the user's conversations, most recently active first.
// Peers whose account was deleted are listed with their id only.
func (r *ConversationRepository) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	summaries := []domain.ConversationSummary{}
	err := r.txn.view(ctx, func(txn *badger.Txn) error {
		prefix := userConversationPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var keys []domain.PairKey
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			keys = append(keys, domain.PairKey(value))
		}

		for _, key := range keys {
			conversation, found, err := getConversation(txn, key)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			summary, err := summarize(txn, conversation, userID)
			if err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(summaries, func(a, b domain.ConversationSummary) int {
		return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
	})
	return summaries, nil
}

func summarize(txn *badger.Txn, conversation domain.Conversation, userID string) (domain.ConversationSummary, error) {
	summary := domain.ConversationSummary{
		ConversationID: conversation.ID,
		Peer:           domain.User{ID: conversation.Key.Peer(userID)},
		MessageCount:   conversation.MessageCount,
		UpdatedAt:      conversation.UpdatedAt,
	}

	peer, err := getUser(txn, summary.Peer.ID)
	switch {
	case err == nil:
		summary.Peer = peer.User
	case !errors.Is(err, errors.ErrUnknownUser):
		return summary, err
	}

	if conversation.MessageCount > 0 {
		last, found, err := getLinkedMessage(txn, messageLinkKey(conversation.ID, conversation.MessageCount-1))
		if err != nil {
			return summary, err
		}
		if found {
			summary.LastMessage = &last
		}
	}
	return summary, nil
}

func createConversation(txn *badger.Txn, conversation domain.Conversation) error {
	if err := txn.Set(pairKey(conversation.Key), encodeConversation(conversation)); err != nil {
		return err
	}
	if err := txn.Set(conversationIDKey(conversation.ID), []byte(conversation.Key)); err != nil {
		return err
	}
	first, second := conversation.Key.Members()
	for _, member := range []string{first, second} {
		if err := txn.Set(userConversationKey(member, conversation.ID), []byte(conversation.Key)); err != nil {
			return err
		}
	}
	return nil
}

func getConversation(txn *badger.Txn, key domain.PairKey) (domain.Conversation, bool, error) {
	item, err := txn.Get(pairKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	var conversation domain.Conversation
	err = item.Value(func(val []byte) error {
		conversation, err = decodeConversation(key, val)
		return err
	})
	return conversation, err == nil, err
}

func getPairKey(txn *badger.Txn, conversationID uuid.UUID) (domain.PairKey, error) {
	item, err := txn.Get(conversationIDKey(conversationID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: unknown conversation %s", errors.ErrInvalidParticipant, conversationID)
	}
	if err != nil {
		return "", err
	}
	value, err := item.ValueCopy(nil)
	return domain.PairKey(value), err
}

func listMessages(txn *badger.Txn, conversationID uuid.UUID) ([]domain.Message, error) {
	prefix := messageLinkPrefix(conversationID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	messages := []domain.Message{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		message, found, err := getLinkedMessage(txn, it.Item().KeyCopy(nil))
		if err != nil {
			return nil, err
		}
		if found {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func getLinkedMessage(txn *badger.Txn, link []byte) (domain.Message, bool, error) {
	item, err := txn.Get(link)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	rawID, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, false, err
	}
	id, err := uuid.ParseBytes(rawID)
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("corrupted link %s: %w", link, err)
	}

	body, err := txn.Get(messageBodyKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	var message domain.Message
	err = body.Value(func(val []byte) error {
		message, err = decodeMessage(val)
		return err
	})
	return message, err == nil, err
}

func encodeConversation(c domain.Conversation) []byte {
	var w recordWriter
	w.string(convFieldID, c.ID.String())
	w.string(convFieldSender, c.Sender)
	w.string(convFieldReceiver, c.Receiver)
	w.uint(convFieldMessageCount, c.MessageCount)
	w.time(convFieldCreatedAt, c.CreatedAt)
	w.time(convFieldUpdatedAt, c.UpdatedAt)
	return w.b
}

func decodeConversation(key domain.PairKey, b []byte) (domain.Conversation, error) {
	f, err := readRecord(b)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	id, err := uuid.Parse(f.strings[convFieldID])
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("decode conversation id: %w", err)
	}
	return domain.Conversation{
		ID:           id,
		Key:          key,
		Sender:       f.strings[convFieldSender],
		Receiver:     f.strings[convFieldReceiver],
		MessageCount: f.uints[convFieldMessageCount],
		CreatedAt:    f.time(convFieldCreatedAt),
		UpdatedAt:    f.time(convFieldUpdatedAt),
	}, nil
}

func encodeMessage(m domain.Message) []byte {
	var w recordWriter
	w.string(msgFieldID, m.ID.String())
	w.string(msgFieldConversationID, m.ConversationID.String())
	w.uint(msgFieldSeq, m.Seq)
	w.string(msgFieldText, m.Text)
	w.string(msgFieldImageURL, m.ImageURL)
	w.string(msgFieldVideoURL, m.VideoURL)
	w.string(msgFieldMsgByUserID, m.MsgByUserID)
	w.bool(msgFieldSeen, m.Seen)
	w.time(msgFieldCreatedAt, m.CreatedAt)
	return w.b
}

func decodeMessage(b []byte) (domain.Message, error) {
	f, err := readRecord(b)
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	id, err := uuid.Parse(f.strings[msgFieldID])
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message id: %w", err)
	}
	conversationID, err := uuid.Parse(f.strings[msgFieldConversationID])
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message conversation: %w", err)
	}
	return domain.Message{
		ID:             id,
		ConversationID: conversationID,
		Seq:            f.uints[msgFieldSeq],
		Text:           f.strings[msgFieldText],
		ImageURL:       f.strings[msgFieldImageURL],
		VideoURL:       f.strings[msgFieldVideoURL],
		MsgByUserID:    f.strings[msgFieldMsgByUserID],
		Seen:           f.bool(msgFieldSeen),
		CreatedAt:      f.time(msgFieldCreatedAt),
	}, nil
}
