package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parley/internal/app/store"
	"parley/internal/configs"
)

// recorderSink captures every frame delivered to one connection.
type recorderSink struct {
	mu     sync.Mutex
	frames [][]byte

	// refuse makes Deliver reject frames, simulating a saturated queue.
	refuse bool
}

func (r *recorderSink) Deliver(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refuse {
		return false
	}

	r.frames = append(r.frames, append([]byte(nil), frame...))
	return true
}

// events decodes every captured frame into its envelope.
func (r *recorderSink) events(t *testing.T) []Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	decoded := make([]Event, 0, len(r.frames))
	for _, frame := range r.frames {
		var e Event
		require.NoError(t, json.Unmarshal(frame, &e))
		decoded = append(decoded, e)
	}
	return decoded
}

// ofType returns the captured events of one type, in delivery order.
func (r *recorderSink) ofType(t *testing.T, eventType string) []Event {
	t.Helper()

	var matches []Event
	for _, e := range r.events(t) {
		if e.Type == eventType {
			matches = append(matches, e)
		}
	}
	return matches
}

// typeSequence returns the captured event types in delivery order.
func (r *recorderSink) typeSequence(t *testing.T) []string {
	t.Helper()

	var types []string
	for _, e := range r.events(t) {
		types = append(types, e.Type)
	}
	return types
}

// reset forgets everything captured so far.
func (r *recorderSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

func decodePayload[T any](t *testing.T, e Event) T {
	t.Helper()

	var payload T
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	return payload
}

var errStoreDown = errors.New("store down")

// memStore is an in-memory MessageStore with a failure switch.
type memStore struct {
	mu      sync.Mutex
	records []store.Message
	fail    bool
}

func (m *memStore) Append(_ context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return errStoreDown
	}

	m.records = append(m.records, msg)
	return nil
}

func (m *memStore) RecentByRoom(_ context.Context, room string, limit int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return nil, errStoreDown
	}

	var matches []store.Message
	for _, r := range m.records {
		if r.Room == room {
			matches = append(matches, r)
		}
	}
	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) stored(t *testing.T) []store.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Message(nil), m.records...)
}

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:     "development",
		HistoryLimit:    50,
		MaxMessageChars: 500,
		TypingTTL:       30 * time.Millisecond,
		MessageRate:     100,
		MessageBurst:    100,
	}
}

func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()

	st := &memStore{}
	h := NewHub(testConfig(), st)
	t.Cleanup(h.Close)

	return h, st
}

// join wires a fresh recorder into the hub and fails the test on rejection.
func join(t *testing.T, h *Hub, connectionID, displayName, room string) *recorderSink {
	t.Helper()

	sink := &recorderSink{}
	require.Nil(t, h.Join(context.Background(), connectionID, sink, displayName, room))
	return sink
}

func userIDOf(h *Hub, connectionID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[connectionID].User.ID
}

// requireConsistentIndex asserts that the room index is exactly the
// partition of sessions by current room, with no empty room entries, and
// that the user index mirrors the sessions.
func requireConsistentIndex(t *testing.T, h *Hub) {
	t.Helper()
	req := require.New(t)

	h.mu.Lock()
	defer h.mu.Unlock()

	for connectionID, s := range h.sessions {
		req.Contains(h.rooms, s.Room)
		req.Contains(h.rooms[s.Room], connectionID)
		req.Equal(connectionID, h.byUser[s.User.ID])
	}

	totalMembers := 0
	for room, members := range h.rooms {
		req.NotEmpty(members, "room %q has an empty member set", room)
		totalMembers += len(members)
		for connectionID := range members {
			req.Contains(h.sessions, connectionID)
			req.Equal(room, h.sessions[connectionID].Room)
		}
	}

	req.Equal(len(h.sessions), totalMembers)
	req.Len(h.byUser, len(h.sessions))
}

func TestHub_Join_FirstAndSecondMemberSeeConsistentPresence(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	// Given alice joins an empty room
	alice := join(t, h, "conn-a", "alice", "general")

	// Then she receives exactly the history and the user list, and no
	// joined notice about herself
	req.Equal([]string{EventChatHistory, EventUserList}, alice.typeSequence(t))

	aliceList := decodePayload[UserListPayload](t, alice.ofType(t, EventUserList)[0])
	req.Len(aliceList.Users, 1)
	req.Equal("alice", aliceList.Users[0].Name)

	// When bob joins the same room
	bob := join(t, h, "conn-b", "bob", "general")

	// Then bob receives history plus a list containing both members
	req.Equal([]string{EventChatHistory, EventUserList}, bob.typeSequence(t))

	bobList := decodePayload[UserListPayload](t, bob.ofType(t, EventUserList)[0])
	req.Len(bobList.Users, 2)
	req.Equal("alice", bobList.Users[0].Name)
	req.Equal("bob", bobList.Users[1].Name)

	// And alice sees bob's arrival followed by the refreshed list
	req.Equal([]string{EventChatHistory, EventUserList, EventUserJoined, EventUserList}, alice.typeSequence(t))

	notice := decodePayload[UserNoticePayload](t, alice.ofType(t, EventUserJoined)[0])
	req.Equal("bob", notice.DisplayName)
	req.Equal("general", notice.Room)

	refreshed := decodePayload[UserListPayload](t, alice.ofType(t, EventUserList)[1])
	req.Len(refreshed.Users, 2)

	requireConsistentIndex(t, h)
}

func TestHub_Join_RejectsBlankAndMalformedInput(t *testing.T) {
	tests := []struct {
		name         string
		displayName  string
		room         string
		expectedCode int
	}{
		{name: "empty display name", displayName: "", room: "general", expectedCode: 2101},
		{name: "blank display name", displayName: "   ", room: "general", expectedCode: 2101},
		{name: "empty room", displayName: "alice", room: "", expectedCode: 2101},
		{name: "blank room", displayName: "alice", room: "  ", expectedCode: 2101},
		{name: "room with key delimiter", displayName: "alice", room: "a:b", expectedCode: 2101},
		{name: "reserved namespace", displayName: "alice", room: "pm:x:y", expectedCode: 2103},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			h, _ := newTestHub(t)

			customErr := h.Join(context.Background(), "conn-a", &recorderSink{}, tc.displayName, tc.room)

			req.NotNil(customErr)
			req.Equal(tc.expectedCode, customErr.Code)

			h.mu.Lock()
			req.Empty(h.sessions)
			req.Empty(h.rooms)
			h.mu.Unlock()
		})
	}
}

func TestHub_Join_UserIDStableAcrossRoomSwitches(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	originalID := userIDOf(h, "conn-a")
	req.NotEmpty(originalID)

	alice := &recorderSink{}
	req.Nil(h.Join(context.Background(), "conn-a", alice, "alice", "lounge"))
	req.Equal(originalID, userIDOf(h, "conn-a"))

	req.Nil(h.Join(context.Background(), "conn-a", alice, "alice", "general"))
	req.Equal(originalID, userIDOf(h, "conn-a"))

	requireConsistentIndex(t, h)
}

func TestHub_Join_SwitchNotifiesVacatedAndEnteredRooms(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	carol := join(t, h, "conn-c", "carol", "lounge")

	alice.reset()
	bob.reset()
	carol.reset()

	// When bob switches from general to lounge
	req.Nil(h.Join(context.Background(), "conn-b", bob, "bob", "lounge"))

	// Then alice sees him leave and the list shrink
	req.Equal([]string{EventUserLeft, EventUserList}, alice.typeSequence(t))
	left := decodePayload[UserNoticePayload](t, alice.ofType(t, EventUserLeft)[0])
	req.Equal("bob", left.DisplayName)

	aliceList := decodePayload[UserListPayload](t, alice.ofType(t, EventUserList)[0])
	req.Len(aliceList.Users, 1)
	req.Equal("alice", aliceList.Users[0].Name)

	// And carol sees him arrive
	req.Equal([]string{EventUserJoined, EventUserList}, carol.typeSequence(t))
	carolList := decodePayload[UserListPayload](t, carol.ofType(t, EventUserList)[0])
	req.Len(carolList.Users, 2)

	// And bob himself receives the entered room's history and list only
	req.Equal([]string{EventChatHistory, EventUserList}, bob.typeSequence(t))
	bobHistory := decodePayload[ChatHistoryPayload](t, bob.ofType(t, EventChatHistory)[0])
	req.Equal("lounge", bobHistory.Room)

	requireConsistentIndex(t, h)
}

func TestHub_Join_SameRoomRejoinRefreshesRequesterOnly(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")
	originalID := userIDOf(h, "conn-a")

	alice.reset()
	bob.reset()

	req.Nil(h.Join(context.Background(), "conn-a", alice, "alice", "general"))

	req.Equal([]string{EventChatHistory, EventUserList}, alice.typeSequence(t))
	req.Empty(bob.events(t))
	req.Equal(originalID, userIDOf(h, "conn-a"))
}

func TestHub_RoomIndex_MatchesSessionsThroughLifecycle(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "general")
	requireConsistentIndex(t, h)

	join(t, h, "conn-b", "bob", "general")
	join(t, h, "conn-c", "carol", "lounge")
	requireConsistentIndex(t, h)

	// Switch bob into lounge, emptying nothing
	bob := &recorderSink{}
	req.Nil(h.Join(context.Background(), "conn-b", bob, "bob", "lounge"))
	requireConsistentIndex(t, h)

	// Disconnect alice, which must delete the now-empty room entry
	h.Disconnect("conn-a")
	requireConsistentIndex(t, h)

	h.mu.Lock()
	req.NotContains(h.rooms, "general")
	h.mu.Unlock()

	h.Disconnect("conn-b")
	h.Disconnect("conn-c")
	requireConsistentIndex(t, h)

	h.mu.Lock()
	req.Empty(h.sessions)
	req.Empty(h.rooms)
	req.Empty(h.byUser)
	h.mu.Unlock()
}

func TestHub_Disconnect_NotifiesRemainingMembers(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	join(t, h, "conn-b", "bob", "general")

	alice.reset()

	h.Disconnect("conn-b")

	req.Equal([]string{EventUserLeft, EventUserList}, alice.typeSequence(t))
	left := decodePayload[UserNoticePayload](t, alice.ofType(t, EventUserLeft)[0])
	req.Equal("bob", left.DisplayName)

	list := decodePayload[UserListPayload](t, alice.ofType(t, EventUserList)[0])
	req.Len(list.Users, 1)
	req.Equal("alice", list.Users[0].Name)
}

func TestHub_Disconnect_IsIdempotent(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	join(t, h, "conn-b", "bob", "general")
	alice.reset()

	h.Disconnect("conn-b")
	h.Disconnect("conn-b")
	h.Disconnect("never-joined")

	req.Len(alice.ofType(t, EventUserLeft), 1)
	requireConsistentIndex(t, h)
}

func TestHub_Deliver_SaturatedSinkDoesNotDisturbOthers(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	alice := join(t, h, "conn-a", "alice", "general")
	bob := join(t, h, "conn-b", "bob", "general")

	bob.mu.Lock()
	bob.refuse = true
	bob.mu.Unlock()

	alice.reset()

	req.Nil(h.PostRoomMessage(context.Background(), "conn-a", "still flowing"))

	messages := alice.ofType(t, EventChatMessage)
	req.Len(messages, 1)
	req.Equal("still flowing", decodePayload[ChatMessagePayload](t, messages[0]).Body)
}

func TestHub_RoomSummaries_SortedWithMemberCounts(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(t)

	join(t, h, "conn-a", "alice", "zoo")
	join(t, h, "conn-b", "bob", "annex")
	join(t, h, "conn-c", "carol", "annex")

	summaries := h.RoomSummaries()

	req.Equal([]RoomSummary{
		{Name: "annex", Members: 2},
		{Name: "zoo", Members: 1},
	}, summaries)
}
