package runtime

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"duo-chat/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type frame struct {
	in  event.Inbound
	err error
}

// fakeConn is an in-memory contract.Connection recording what the server sends.
type fakeConn struct {
	id        string
	token     string
	inbound   chan frame
	outbound  chan event.Outbound
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	received []event.Outbound
}

func newFakeConn(token string) *fakeConn {
	return &fakeConn{
		id:       uuid.NewString(),
		token:    token,
		inbound:  make(chan frame, 16),
		outbound: make(chan event.Outbound, 256),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ID() string    { return c.id }
func (c *fakeConn) Token() string { return c.token }

func (c *fakeConn) Consume(_ context.Context, e event.Outbound) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	c.received = append(c.received, e)
	c.mu.Unlock()
	c.outbound <- e
	return nil
}

func (c *fakeConn) Next(ctx context.Context) (event.Inbound, error) {
	select {
	case f := <-c.inbound:
		return f.in, f.err
	case <-c.closed:
		return event.Inbound{}, io.EOF
	case <-ctx.Done():
		return event.Inbound{}, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// send queues a client frame, payload is JSON encoded.
func (c *fakeConn) send(t *testing.T, name event.Name, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	c.inbound <- frame{in: event.Inbound{Name: name, Data: data}}
}

// waitFor returns the next event called name, skipping the others.
func (c *fakeConn) waitFor(t *testing.T, name event.Name) event.Outbound {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.outbound:
			if e.Name == name {
				return e
			}
		case <-timeout:
			require.FailNow(t, "event not received", "event %q on %s", name, c.id)
		}
	}
}

func (c *fakeConn) named(name event.Name) []event.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Outbound
	for _, e := range c.received {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func texts(t *testing.T, e event.Outbound) []string {
	t.Helper()
	views, ok := e.Payload.([]event.MessageView)
	require.True(t, ok, "payload is %T", e.Payload)
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Text)
	}
	return out
}
