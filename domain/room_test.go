package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPairKey_IsOrderIndependent(t *testing.T) {
	req := require.New(t)

	// Given the same two users in both orders
	ab := NewPairKey("alice", "bob")
	ba := NewPairKey("bob", "alice")

	// Then both keys are equal and normalized
	req.Equal(ab, ba)
	req.Equal(PairKey("alice:bob"), ab)

	first, second := ab.Members()
	req.Equal("alice", first)
	req.Equal("bob", second)
}

func TestPairKey_Peer(t *testing.T) {
	req := require.New(t)
	key := NewPairKey("u2", "u1")

	req.True(key.Has("u1"))
	req.True(key.Has("u2"))
	req.False(key.Has("u3"))
	req.Equal("u2", key.Peer("u1"))
	req.Equal("u1", key.Peer("u2"))
}

func TestMessage_HasContent(t *testing.T) {
	req := require.New(t)

	req.False(Message{}.HasContent())
	req.True(Message{Text: "hi"}.HasContent())
	req.True(Message{VideoURL: "https://cdn/v.mp4"}.HasContent())
}
