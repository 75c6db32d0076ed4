// Package runtime drives live chat connections: admission, presence, routing of
// inbound events to the conversation store and fan-out of the results.
// It holds no persistence of its own.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/domain/event"
)

// Orchestrator owns the shared collaborators of every connection.
// It is built once by the composition root and is safe for concurrent use.
type Orchestrator struct {
	log           *slog.Logger
	resolver      contract.IdentityResolver
	accounts      contract.AccountStore
	conversations contract.ConversationStore
	presence      contract.IPresence
	broadcaster   contract.IBroadcaster
	storeTimeout  time.Duration
	replyTimeout  time.Duration
}

func NewOrchestrator(log *slog.Logger,
	resolver contract.IdentityResolver, accounts contract.AccountStore,
	conversations contract.ConversationStore, presence contract.IPresence,
	broadcaster contract.IBroadcaster, storeTimeout, replyTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:           log,
		resolver:      resolver,
		accounts:      accounts,
		conversations: conversations,
		presence:      presence,
		broadcaster:   broadcaster,
		storeTimeout:  storeTimeout,
		replyTimeout:  replyTimeout,
	}
}

// Admit is the synchronous admission check: it tells whether token belongs to
// a live account without touching presence.
func (o *Orchestrator) Admit(ctx context.Context, token string) (domain.User, error) {
	return o.resolver.Resolve(ctx, token)
}

// Serve runs the whole lifecycle of conn and returns once it is terminated.
// The returned error is the admission failure, if any.
func (o *Orchestrator) Serve(ctx context.Context, conn contract.Connection) error {
	return NewSession(o, conn).Run(ctx)
}

// OnlineUsers reports the current online-set.
func (o *Orchestrator) OnlineUsers() []string {
	return o.presence.Snapshot()
}

func (o *Orchestrator) broadcastOnline(ctx context.Context) {
	o.broadcaster.EmitToAll(ctx, event.NewOutbound(event.OnlineUser, o.presence.Snapshot()))
}

func (o *Orchestrator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.storeTimeout)
}
