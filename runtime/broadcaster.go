package runtime

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"duo-chat/contract"
	"duo-chat/domain/event"
	"duo-chat/errors"
)

type target struct {
	userID string
	sink   contract.EventSink
}

// Broadcaster routes outbound events to the live connections of a user.
// Each user owns a room named after their id holding one sink per connection.
type Broadcaster struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]contract.EventSink // map user -> conn -> sink
	sinkTimeout time.Duration
	log         *slog.Logger
}

func NewBroadcaster(sinkTimeout time.Duration, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		rooms:       make(map[string]map[string]contract.EventSink),
		sinkTimeout: sinkTimeout,
		log:         log,
	}
}

// Admit places sink in the room of userID.
func (b *Broadcaster) Admit(userID string, sink contract.EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[userID]
	if !ok {
		room = make(map[string]contract.EventSink)
		b.rooms[userID] = room
	}
	room[sink.ID()] = sink
}

// Remove takes connID out of the room of userID. Unknown handles are ignored.
func (b *Broadcaster) Remove(userID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(userID, connID)
}

func (b *Broadcaster) remove(userID, connID string) bool {
	room, ok := b.rooms[userID]
	if !ok {
		return false
	}
	if _, ok := room[connID]; !ok {
		return false
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(b.rooms, userID)
	}
	return true
}

// EmitToUser delivers e to every connection of userID. A user without
// connections is not an error.
func (b *Broadcaster) EmitToUser(ctx context.Context, userID string, e event.Outbound) {
	b.mu.RLock()
	targets := make([]target, 0, len(b.rooms[userID]))
	for _, sink := range b.rooms[userID] {
		targets = append(targets, target{userID: userID, sink: sink})
	}
	b.mu.RUnlock()

	b.deliver(ctx, targets, e)
}

// EmitToAll delivers e to every live connection.
func (b *Broadcaster) EmitToAll(ctx context.Context, e event.Outbound) {
	b.mu.RLock()
	var targets []target
	for userID, room := range b.rooms {
		for _, sink := range room {
			targets = append(targets, target{userID: userID, sink: sink})
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(targets, func(a, b target) int {
		return cmp.Or(strings.Compare(a.userID, b.userID), strings.Compare(a.sink.ID(), b.sink.ID()))
	})
	b.deliver(ctx, targets, e)
}

// deliver runs outside the lock: a slow sink never blocks Admit or Remove.
// A sink failing to consume within sinkTimeout is dropped from its room and closed,
// the remaining sinks still get the event.
func (b *Broadcaster) deliver(ctx context.Context, targets []target, e event.Outbound) {
	for _, t := range targets {
		sinkCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
		err := t.sink.Consume(sinkCtx, e)
		cancel()
		if err == nil {
			continue
		}

		err = fmt.Errorf("%w: %v", errors.ErrTransportFailure, err)
		b.log.Warn("Dropping connection after failed delivery",
			"user_id", t.userID, "conn_id", t.sink.ID(), "event", e.Name, "error", err)
		b.evict(t)
	}
}

func (b *Broadcaster) evict(t target) {
	b.mu.Lock()
	removed := b.remove(t.userID, t.sink.ID())
	b.mu.Unlock()

	if !removed {
		return
	}
	if err := t.sink.Close(); err != nil {
		b.log.Debug("Closing evicted connection", "conn_id", t.sink.ID(), "error", err)
	}
}

// Connections returns the number of live connections, all users included.
func (b *Broadcaster) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, room := range b.rooms {
		total += len(room)
	}
	return total
}
