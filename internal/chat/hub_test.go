package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/linkapp/backend/internal/models"
)

type recordingStore struct {
	mu       sync.Mutex
	messages []models.Message
}

func (s *recordingStore) Append(_ context.Context, _, _ string, message models.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	return nil
}

func (s *recordingStore) snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{hub: hub, send: make(chan []byte, 8), userID: userID}
}

func register(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	select {
	case hub.register <- client:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw := <-client.send:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func expectSilence(t *testing.T, client *Client) {
	t.Helper()
	select {
	case raw := <-client.send:
		t.Fatalf("unexpected delivery: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomKeyCanonical(t *testing.T) {
	if RoomKey("a", "b") != RoomKey("b", "a") {
		t.Fatal("both orderings must resolve to the same room")
	}
	if RoomKey("a", "b") != "b,a" {
		t.Fatalf("expected larger id first, got %s", RoomKey("a", "b"))
	}

	u1, u2, err := ParseRoomKey("b,a")
	if err != nil || u1 != "b" || u2 != "a" {
		t.Fatalf("parse: %v %q %q", err, u1, u2)
	}
	if _, _, err := ParseRoomKey("b,a,c"); err == nil {
		t.Fatal("expected error for three-part key")
	}
}

func TestHubDeliversToRoomExceptSender(t *testing.T) {
	store := &recordingStore{}
	hub := NewHub(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := newTestClient(hub, "a")
	bob := newTestClient(hub, "b")
	register(t, hub, alice)
	register(t, hub, bob)

	// Each side joins with its own ordering of the pair.
	hub.Join(alice, []string{"a", "b"})
	hub.Join(bob, []string{"b", "a"})

	hub.Send(alice, []string{"a", "b"}, &MessagePayload{Author: "a", Content: "hello"})

	event := receive(t, bob)
	if event.Type != EventReceive || event.Message == nil || event.Message.Content != "hello" {
		t.Fatalf("unexpected event %+v", event)
	}
	expectSilence(t, alice)
}

func TestHubPersistsInSendOrder(t *testing.T) {
	store := &recordingStore{}
	hub := NewHub(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := newTestClient(hub, "a")
	register(t, hub, alice)
	hub.Join(alice, []string{"a", "b"})

	hub.Send(alice, []string{"a", "b"}, &MessagePayload{Author: "a", Content: "first"})
	hub.Send(alice, []string{"a", "b"}, &MessagePayload{Author: "a", Content: "second"})

	deadline := time.Now().Add(time.Second)
	for {
		if len(store.snapshot()) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 persisted messages, got %d", len(store.snapshot()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	messages := store.snapshot()
	if messages[0].Content != "first" || messages[1].Content != "second" {
		t.Fatalf("messages persisted out of order: %+v", messages)
	}
	if messages[0].Room != RoomKey("a", "b") {
		t.Fatalf("expected canonical room key, got %s", messages[0].Room)
	}
}

func TestHubDropsUnauthorizedSends(t *testing.T) {
	store := &recordingStore{}
	hub := NewHub(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := newTestClient(hub, "a")
	bob := newTestClient(hub, "b")
	eve := newTestClient(hub, "e")
	register(t, hub, alice)
	register(t, hub, bob)
	register(t, hub, eve)

	hub.Join(bob, []string{"a", "b"})

	// Not a participant of the room.
	hub.Send(eve, []string{"a", "b"}, &MessagePayload{Author: "e", Content: "intrude"})
	// Participant forging another author.
	hub.Send(alice, []string{"a", "b"}, &MessagePayload{Author: "b", Content: "forged"})

	expectSilence(t, bob)
	if got := len(store.snapshot()); got != 0 {
		t.Fatalf("expected nothing persisted, got %d", got)
	}
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	store := &recordingStore{}
	hub := NewHub(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := newTestClient(hub, "a")
	bob := newTestClient(hub, "b")
	register(t, hub, alice)
	register(t, hub, bob)
	hub.Join(alice, []string{"a", "b"})
	hub.Join(bob, []string{"a", "b"})

	hub.unregister <- bob

	select {
	case _, ok := <-bob.send:
		if ok {
			t.Fatal("expected bob's send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("unregister was not processed")
	}

	// Departed clients no longer receive room traffic; persistence still runs.
	hub.Send(alice, []string{"a", "b"}, &MessagePayload{Author: "a", Content: "anyone there"})

	deadline := time.Now().Add(time.Second)
	for len(store.snapshot()) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected the message to be persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
