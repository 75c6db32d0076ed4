//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"duo-chat/domain"
	"duo-chat/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one live connection handle.
type EventSink interface {
	ID() string
	Consume(ctx context.Context, e event.Outbound) error
	Close() error
}

// Connection is a realtime channel admitted (or not) by the orchestrator.
// Next blocks until the client sends a frame or the channel is gone.
type Connection interface {
	EventSink
	Token() string
	Next(ctx context.Context) (event.Inbound, error)
}

type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.User, error)
}

type AccountStore interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
}

type ConversationStore interface {
	FindOrCreate(ctx context.Context, userA, userB string) (domain.Conversation, error)
	History(ctx context.Context, userA, userB string) ([]domain.Message, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, message domain.Message) (domain.Message, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

type IPresence interface {
	Join(userID, connID string) bool
	Leave(userID, connID string) bool
	IsOnline(userID string) bool
	Snapshot() []string
	Count() int
}

type IBroadcaster interface {
	Admit(userID string, sink EventSink)
	Remove(userID, connID string)
	EmitToUser(ctx context.Context, userID string, e event.Outbound)
	EmitToAll(ctx context.Context, e event.Outbound)
}
