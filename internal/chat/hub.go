package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/linkapp/backend/internal/logging"
	"github.com/linkapp/backend/internal/models"
)

// MessageStore persists chat messages. Persistence is the durability
// guarantee; in-memory delivery is best effort and never retried.
type MessageStore interface {
	Append(ctx context.Context, userA, userB string, message models.Message) error
}

type joinRequest struct {
	client *Client
	room   string
}

type delivery struct {
	sender  *Client
	room    string
	users   []string
	message models.Message
	payload *MessagePayload
}

// Hub maintains the set of connected clients and the per-room subscriber
// registry, fans out published messages, and appends them to the store.
type Hub struct {
	store  MessageStore
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	joins      chan joinRequest
	deliveries chan delivery

	// rooms maps canonical room keys to subscribed clients; memberships is
	// the reverse index used to clean up on disconnect.
	rooms       map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
}

// NewHub constructs a hub backed by the given message store.
func NewHub(store MessageStore, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:       store,
		logger:      logger,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		joins:       make(chan joinRequest),
		deliveries:  make(chan delivery, 64),
		rooms:       make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
	}
}

// Run processes hub events until the context is canceled. All room state is
// owned by this loop; no locking is needed elsewhere.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.memberships {
				close(client.send)
			}
			return
		case client := <-h.register:
			h.memberships[client] = make(map[string]struct{})
		case client := <-h.unregister:
			h.removeClient(client)
		case join := <-h.joins:
			h.joinRoom(join.client, join.room)
		case d := <-h.deliveries:
			h.broadcast(d)
			h.persist(ctx, d)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	rooms, ok := h.memberships[client]
	if !ok {
		return
	}
	for room := range rooms {
		delete(h.rooms[room], client)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.memberships, client)
	close(client.send)
}

func (h *Hub) joinRoom(client *Client, room string) {
	if _, ok := h.memberships[client]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.memberships[client][room] = struct{}{}
	h.logger.Debug("client joined room", "room", room, "userId", client.userID)
}

// broadcast delivers the payload to every subscriber in the room except the
// sender. Delivery is fire and forget: a client with a full send buffer is
// dropped from the hub rather than blocking the loop.
func (h *Hub) broadcast(d delivery) {
	payload, err := receiveEvent(d.users, d.payload)
	if err != nil {
		h.logger.Error("encode receive event", "error", err)
		return
	}

	for client := range h.rooms[d.room] {
		if client == d.sender {
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.removeClient(client)
		}
	}
}

// persist appends the message to the durable room history. Failures are
// logged, never surfaced to the sender; history is the source of truth but
// the realtime path does not wait on it.
func (h *Hub) persist(ctx context.Context, d delivery) {
	ctx, span := logging.StartSpan(ctx, "chat.persist")
	defer span.End()

	if err := h.store.Append(ctx, d.users[0], d.users[1], d.message); err != nil {
		span.Fail(err)
		logging.FromContext(ctx).Error("persist chat message", "room", d.room, "error", err)
	}
}

// Join subscribes the client to the canonical room for the pair. The client
// must be one of the two participants; other joins are silently ignored.
func (h *Hub) Join(client *Client, users []string) {
	if len(users) != 2 {
		return
	}
	if client.userID != users[0] && client.userID != users[1] {
		return
	}
	h.joins <- joinRequest{client: client, room: RoomKey(users[0], users[1])}
}

// Send publishes a message to the pair's room and queues it for persistence.
// The sender must be one of the named participants and must match the
// message's claimed author; anything else is dropped without an error — a
// deliberate fire-and-forget trust boundary.
func (h *Hub) Send(client *Client, users []string, payload *MessagePayload) {
	if len(users) != 2 || payload == nil {
		return
	}
	if client.userID != users[0] && client.userID != users[1] {
		return
	}
	if payload.Author != client.userID {
		return
	}

	room := RoomKey(users[0], users[1])
	message := models.Message{
		ID:        uuid.NewString(),
		Room:      room,
		AuthorID:  payload.Author,
		Content:   payload.Content,
		Markdown:  payload.Markdown,
		Math:      payload.Math,
		CreatedAt: time.Now().UTC(),
	}

	h.deliveries <- delivery{
		sender:  client,
		room:    room,
		users:   users,
		message: message,
		payload: payload,
	}
}
