// Package store is the durable side of the relay: an append-only record
// of rooms, memberships, and messages. The in-memory registry stays
// authoritative for liveness; the store is the mirror that history and
// restarts are served from.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRoomNotFound is returned when an operation references a room that
// was never created.
var ErrRoomNotFound = errors.New("room not found")

type Room struct {
	ID        int64     `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a committed chat message. Seq is assigned at commit time
// and is strictly increasing within a room; history order is Seq order.
type Message struct {
	Seq       int64     `json:"seq"`
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence gateway consumed by the broadcast core. All
// writes are idempotent or append-only; nothing is ever updated in
// place or deleted.
type Store interface {
	// UpsertRoom creates the room if absent and returns it either way.
	UpsertRoom(ctx context.Context, name string) (Room, error)
	// AddMember records a durable membership fact; adding an existing
	// member is a no-op.
	AddMember(ctx context.Context, roomName, username string) error
	// AppendMessage commits a message and returns it with its sequence
	// number assigned. Fails with ErrRoomNotFound for unknown rooms.
	AppendMessage(ctx context.Context, roomName, username, text string) (Message, error)
	// History returns up to limit messages for the room, oldest first.
	// limit <= 0 means no limit.
	History(ctx context.Context, roomName string, limit int) ([]Message, error)
	// Members returns the persisted member list, oldest join first.
	Members(ctx context.Context, roomName string) ([]string, error)
	// Rooms returns every persisted room, used to warm the registry at
	// boot.
	Rooms(ctx context.Context) ([]Room, error)
}
