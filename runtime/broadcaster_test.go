package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"duo-chat/domain/event"
	"duo-chat/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestBroadcaster_EmitToUser_Reaches_Every_Connection_Of_The_User(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(100*time.Millisecond, slog.Default())
	aliceTab1, aliceTab2, bob := newFakeConn(""), newFakeConn(""), newFakeConn("")

	// Given alice has two tabs and bob one
	broadcaster.Admit("alice", aliceTab1)
	broadcaster.Admit("alice", aliceTab2)
	broadcaster.Admit("bob", bob)
	req.Equal(3, broadcaster.Connections())

	// When an event is emitted to alice
	broadcaster.EmitToUser(context.Background(), "alice", event.NewOutbound(event.Message, []event.MessageView{}))

	// Then both of her tabs get it and bob does not
	req.Len(aliceTab1.named(event.Message), 1)
	req.Len(aliceTab2.named(event.Message), 1)
	req.Empty(bob.named(event.Message))
}

func TestBroadcaster_EmitToUser_Without_Connection(t *testing.T) {
	broadcaster := NewBroadcaster(100*time.Millisecond, slog.Default())

	require.NotPanics(t, func() {
		broadcaster.EmitToUser(context.Background(), "offline", event.NewOutbound(event.Message, nil))
	})
}

func TestBroadcaster_EmitToAll(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(100*time.Millisecond, slog.Default())
	conns := []*fakeConn{newFakeConn(""), newFakeConn(""), newFakeConn("")}
	for i, conn := range conns {
		broadcaster.Admit(fmt.Sprintf("user-%d", i), conn)
	}

	broadcaster.EmitToAll(context.Background(), event.NewOutbound(event.OnlineUser, []string{"user-0", "user-1", "user-2"}))

	for _, conn := range conns {
		req.Len(conn.named(event.OnlineUser), 1)
	}
}

func TestBroadcaster_Remove(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(100*time.Millisecond, slog.Default())
	tab1, tab2 := newFakeConn(""), newFakeConn("")
	broadcaster.Admit("alice", tab1)
	broadcaster.Admit("alice", tab2)

	broadcaster.Remove("alice", tab1.ID())
	broadcaster.Remove("alice", "unknown")
	broadcaster.Remove("ghost", tab1.ID())
	broadcaster.EmitToUser(context.Background(), "alice", event.NewOutbound(event.Message, nil))

	req.Empty(tab1.named(event.Message))
	req.Len(tab2.named(event.Message), 1)

	broadcaster.Remove("alice", tab2.ID())
	req.Empty(broadcaster.rooms)
}

func TestBroadcaster_Failing_Sink_Is_Dropped_And_Closed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	broadcaster := NewBroadcaster(100*time.Millisecond, log)

	broken := mocks.NewMockEventSink(ctrl)
	healthy := newFakeConn("")
	broken.EXPECT().ID().Return("broken").AnyTimes()

	// Given the broken sink fails once then gets closed
	broken.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(fmt.Errorf("broken pipe")).Times(1)
	broken.EXPECT().Close().Return(nil).Times(1)

	broadcaster.Admit("alice", broken)
	broadcaster.Admit("alice", healthy)

	// When two events are emitted
	broadcaster.EmitToUser(context.Background(), "alice", event.NewOutbound(event.Message, nil))
	broadcaster.EmitToUser(context.Background(), "alice", event.NewOutbound(event.Message, nil))

	// Then the healthy connection got both, the broken one was only tried once
	req.Len(healthy.named(event.Message), 2)
	req.Equal(1, broadcaster.Connections())
}

func TestBroadcaster_Slow_Sink_Times_Out(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	broadcaster := NewBroadcaster(20*time.Millisecond, slog.Default())

	slow := mocks.NewMockEventSink(ctrl)
	other := newFakeConn("")
	slow.EXPECT().ID().Return("slow").AnyTimes()
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ event.Outbound) error {
			<-ctx.Done()     // Waiting for timeout to trigger cancellation
			return ctx.Err() // Sending back "context deadline exceeded"
		}).Times(1)
	slow.EXPECT().Close().Return(nil).Times(1)

	broadcaster.Admit("alice", slow)
	broadcaster.Admit("bob", other)

	start := time.Now()
	broadcaster.EmitToAll(context.Background(), event.NewOutbound(event.OnlineUser, []string{"alice", "bob"}))

	req.Less(time.Since(start), time.Second)
	req.Len(other.named(event.OnlineUser), 1)
	req.Equal(1, broadcaster.Connections())
}
