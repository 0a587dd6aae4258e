package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parley/internal/pkg/errs"
)

// waitForTypes polls a recorder until its captured type sequence matches, to
// observe timer-driven events without sleeping longer than needed.
func waitForTypes(t *testing.T, sink *recorderSink, expected []string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		types := sink.typeSequence(t)
		if len(types) >= len(expected) {
			require.Equal(t, expected, types)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.Equal(t, expected, sink.typeSequence(t))
}

func TestHub_Typing_RepeatedStartEmitsOnce(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	bob.reset()

	// When alice signals typing twice in a row
	req.Nil(h.StartTyping("conn-a"))
	req.Nil(h.StartTyping("conn-a"))

	// Then bob sees exactly one start
	starts := bob.ofType(t, EventTyping)
	req.Len(starts, 1)

	payload := decodePayload[TypingPayload](t, starts[0])
	req.Equal("alice", payload.DisplayName)
	req.Equal("general", payload.Room)
}

func TestHub_Typing_StartThenStopEmitsOneOfEachInOrder(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	alice.reset()
	bob.reset()

	req.Nil(h.StartTyping("conn-a"))
	req.Nil(h.StopTyping("conn-a"))

	req.Equal([]string{EventTyping, EventStopTyping}, bob.typeSequence(t))

	// The signaler herself hears nothing
	req.Empty(alice.events(t))
}

func TestHub_Typing_StopWhileIdleIsNoOp(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	bob.reset()

	req.Nil(h.StopTyping("conn-a"))

	req.Empty(bob.events(t))
}

func TestHub_Typing_RequiresSession(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	customErr := h.StartTyping("never-joined")
	req.NotNil(customErr)
	req.Equal(errs.ErrNotJoined, customErr.Code)

	customErr = h.StopTyping("never-joined")
	req.NotNil(customErr)
	req.Equal(errs.ErrNotJoined, customErr.Code)
}

func TestHub_Typing_ExpiresLikeAnExplicitStop(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	bob.reset()

	// Given alice starts typing and then goes silent past the TTL
	req.Nil(h.StartTyping("conn-a"))

	waitForTypes(t, bob, []string{EventTyping, EventStopTyping})

	// And a later explicit stop changes nothing
	req.Nil(h.StopTyping("conn-a"))
	req.Equal([]string{EventTyping, EventStopTyping}, bob.typeSequence(t))
}

func TestHub_Typing_RestartRearmsExpiryWithoutReEmitting(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	bob.reset()

	// Keep renewing inside the TTL window; no stop may fire meanwhile
	req.Nil(h.StartTyping("conn-a"))
	for i := 0; i < 8; i++ {
		time.Sleep(5 * time.Millisecond)
		req.Nil(h.StartTyping("conn-a"))
	}

	req.Equal([]string{EventTyping}, bob.typeSequence(t))

	// Once renewal stops, the expiry fires exactly once
	waitForTypes(t, bob, []string{EventTyping, EventStopTyping})
}

func TestHub_Typing_DisconnectEmitsStopToRoom(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	bob.reset()

	req.Nil(h.StartTyping("conn-a"))
	h.Disconnect("conn-a")

	// Bob sees the stop even though alice never signaled it, followed by
	// the departure events.
	req.Equal([]string{EventTyping, EventStopTyping, EventUserLeft, EventUserList}, bob.typeSequence(t))

	stop := decodePayload[TypingPayload](t, bob.ofType(t, EventStopTyping)[0])
	req.Equal("alice", stop.DisplayName)
}

func TestHub_Typing_RoomSwitchClearsStateInVacatedRoom(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	carol := join(t, h, "conn-c", "carol", "lounge")

	req.Nil(h.StartTyping("conn-a"))

	bob.reset()
	carol.reset()

	// When alice switches rooms mid-typing
	req.Nil(h.Join(context.Background(), "conn-a", alice, "alice", "lounge"))

	// Then the vacated room sees the stop before the departure
	req.Equal([]string{EventStopTyping, EventUserLeft, EventUserList}, bob.typeSequence(t))

	// And the entered room sees no typing state at all
	req.Empty(carol.ofType(t, EventTyping))
	req.Empty(carol.ofType(t, EventStopTyping))

	h.mu.Lock()
	req.Empty(h.typing)
	h.mu.Unlock()
}
