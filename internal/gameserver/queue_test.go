package gameserver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/subjugate/internal/gameserver"
	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/testutil"
)

func TestCommandQueue_DrainsInArrivalOrder(t *testing.T) {
	q := gameserver.NewCommandQueue(8, 0)
	for i := range 5 {
		ok, reason := q.Enqueue(gameserver.Command{Kind: gameserver.CmdMove, Payload: i})
		require.True(t, ok, reason)
	}
	got := q.Drain()
	require.Len(t, got, 5)
	for i, cmd := range got {
		assert.Equal(t, i, cmd.Payload)
	}
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}

func TestCommandQueue_RejectsWhenFull(t *testing.T) {
	q := gameserver.NewCommandQueue(2, 0)
	ok, _ := q.Enqueue(gameserver.Command{Kind: gameserver.CmdMove})
	require.True(t, ok)
	ok, _ = q.Enqueue(gameserver.Command{Kind: gameserver.CmdMove})
	require.True(t, ok)

	ok, reason := q.Enqueue(gameserver.Command{Kind: gameserver.CmdMove})
	assert.False(t, ok)
	assert.Equal(t, gameserver.RejectQueueFull, reason)
	assert.Equal(t, uint64(1), q.Dropped(gameserver.RejectQueueFull))
}

func TestCommandQueue_PerSessionLimit(t *testing.T) {
	s1, _ := testutil.NewPipeSession(t, network.Options{})
	s2, _ := testutil.NewPipeSession(t, network.Options{})
	q := gameserver.NewCommandQueue(16, 2)

	for range 2 {
		ok, _ := q.Enqueue(gameserver.Command{Kind: gameserver.CmdAttack, Session: s1})
		require.True(t, ok)
	}
	ok, reason := q.Enqueue(gameserver.Command{Kind: gameserver.CmdAttack, Session: s1})
	assert.False(t, ok)
	assert.Equal(t, gameserver.RejectQueueLimit, reason)

	ok, _ = q.Enqueue(gameserver.Command{Kind: gameserver.CmdAttack, Session: s2})
	assert.True(t, ok, "the limit is per session")

	q.Drain()
	ok, _ = q.Enqueue(gameserver.Command{Kind: gameserver.CmdAttack, Session: s1})
	assert.True(t, ok, "draining resets the per-session count")
}

func TestCommandQueue_DisconnectsNeverDropped(t *testing.T) {
	s, _ := testutil.NewPipeSession(t, network.Options{})
	q := gameserver.NewCommandQueue(1, 1)
	ok, _ := q.Enqueue(gameserver.Command{Kind: gameserver.CmdMove, Session: s})
	require.True(t, ok)

	q.Disconnect(gameserver.Command{Session: s})
	q.Disconnect(gameserver.Command{Session: s})

	got := q.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, gameserver.CmdMove, got[0].Kind)
	assert.Equal(t, gameserver.CmdDisconnect, got[1].Kind, "disconnects follow the staged commands")
	assert.Equal(t, gameserver.CmdDisconnect, got[2].Kind)
}

func TestCommandKind_String(t *testing.T) {
	assert.Equal(t, "enter_world", gameserver.CmdEnterWorld.String())
	assert.Equal(t, "disconnect", gameserver.CmdDisconnect.String())
	assert.Equal(t, "unknown", gameserver.CommandKind(0).String())
}

func TestPropertyCommandQueue_NeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 32).Draw(t, "capacity")
		n := rapid.IntRange(0, 64).Draw(t, "n")
		q := gameserver.NewCommandQueue(capacity, 0)
		accepted := 0
		for i := 0; i < n; i++ {
			if ok, _ := q.Enqueue(gameserver.Command{Kind: gameserver.CmdMove, Payload: i}); ok {
				accepted++
			}
		}
		want := min(n, capacity)
		if accepted != want {
			t.Fatalf("accepted %d of %d with capacity %d", accepted, n, capacity)
		}
		got := q.Drain()
		for i, cmd := range got {
			if cmd.Payload != i {
				t.Fatalf("command %d carries payload %v", i, cmd.Payload)
			}
		}
	})
}
