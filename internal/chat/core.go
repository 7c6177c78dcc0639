// Package chat implements the room-based broadcast core: one
// authoritative Join/Send/History used by every entry point, with the
// room registry mutated, the fact persisted, and the notification
// fanned out strictly in that order per room.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/store"
)

type Core struct {
	reg     *Registry
	store   store.Store
	log     zerolog.Logger
	timeout time.Duration
}

func NewCore(reg *Registry, st store.Store, log zerolog.Logger, persistTimeout time.Duration) *Core {
	return &Core{reg: reg, store: st, log: log, timeout: persistTimeout}
}

// Registry exposes the registry handle for session detach on
// disconnect.
func (c *Core) Registry() *Registry { return c.reg }

// JoinResult is what a join reports back to its caller.
type JoinResult struct {
	Room          string
	Users         []string
	AlreadyMember bool
}

// Join adds username to roomName, creating the room on first join, and
// notifies every delivery target. When sess is non-nil it is attached
// as a delivery target, rebinding the session to username. Idempotent
// for repeat joins of the same user.
//
// The room fact is persisted before anything is broadcast; on a
// persistence failure the registry mutation is rolled back and no
// notification leaves the core.
func (c *Core) Join(ctx context.Context, username, roomName string, sess Session) (JoinResult, error) {
	username = strings.TrimSpace(username)
	roomName = strings.TrimSpace(roomName)
	if username == "" || roomName == "" {
		return JoinResult{}, ErrInvalidInput
	}

	room, err := c.ensureAndLock(roomName)
	if err != nil {
		return JoinResult{}, err
	}
	defer room.ops.Unlock()

	already := room.AddMember(username)

	if err := c.persistJoin(ctx, roomName, username); err != nil {
		if !already {
			room.removeMember(username)
		}
		c.reg.evictIfUnused(roomName)
		return JoinResult{}, err
	}

	if sess != nil {
		room.AttachSession(sess)
	}

	room.broadcast(messageEvent(SystemSender, fmt.Sprintf("%s joined %s", username, roomName), 0))
	users := room.Members()
	room.broadcast(roomDataEvent(roomName, users))

	c.log.Info().Str("room", roomName).Str("username", username).Bool("already_member", already).Msg("join")
	return JoinResult{Room: roomName, Users: users, AlreadyMember: already}, nil
}

// Send commits a message to roomName and fans it out. The room must
// already exist; the sender need not be a member (see DESIGN.md).
// Fan-out happens only after the commit succeeds, so a history read
// immediately after receiving the live event always includes it.
func (c *Core) Send(ctx context.Context, username, roomName, text string) (store.Message, error) {
	username = strings.TrimSpace(username)
	roomName = strings.TrimSpace(roomName)
	if username == "" || roomName == "" {
		return store.Message{}, ErrInvalidInput
	}
	if strings.TrimSpace(text) == "" {
		return store.Message{}, ErrEmptyMessage
	}

	room, ok := c.lockRoom(roomName)
	if !ok {
		return store.Message{}, ErrRoomNotFound
	}
	defer room.ops.Unlock()

	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg, err := c.store.AppendMessage(pctx, roomName, username, text)
	if err != nil {
		return store.Message{}, c.persistErr(err)
	}

	room.broadcast(messageEvent(msg.Username, msg.Text, msg.Seq))

	c.log.Debug().Str("room", roomName).Str("username", username).Int64("seq", msg.Seq).Msg("message committed")
	return msg, nil
}

// History returns the room's messages oldest first, by commit
// sequence. limit <= 0 returns everything.
func (c *Core) History(ctx context.Context, roomName string, limit int) ([]store.Message, error) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return nil, ErrInvalidInput
	}
	if _, ok := c.reg.Lookup(roomName); !ok {
		return nil, ErrRoomNotFound
	}

	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msgs, err := c.store.History(pctx, roomName, limit)
	if err != nil {
		return nil, c.persistErr(err)
	}
	return msgs, nil
}

// Leave detaches the session from the room's delivery targets.
// Membership is a durable fact and is not retracted.
func (c *Core) Leave(roomName string, sess Session) error {
	room, ok := c.reg.Lookup(strings.TrimSpace(roomName))
	if !ok {
		return ErrRoomNotFound
	}
	room.DetachSession(sess.ID())
	return nil
}

// Warm seeds the registry from the durable mirror so rooms created in
// earlier runs keep answering Send and History after a restart.
func (c *Core) Warm(ctx context.Context) error {
	rooms, err := c.store.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("warm registry: %w", err)
	}
	for _, r := range rooms {
		members, err := c.store.Members(ctx, r.Name)
		if err != nil {
			return fmt.Errorf("warm members of %q: %w", r.Name, err)
		}
		c.reg.warm(r.Name, r.CreatedAt, members)
	}
	c.log.Info().Int("rooms", len(rooms)).Msg("registry warmed")
	return nil
}

// ensureAndLock returns the room registered under roomName with its op
// lock held. A handle obtained from EnsureRoom can be evicted by a
// failed join's rollback while we wait on ops; operating on such an
// orphan would commit effects Lookup can never see again, so the
// handle is re-verified after locking and the ensure retried until it
// is still the registered one.
func (c *Core) ensureAndLock(roomName string) (*Room, error) {
	for {
		room, err := c.reg.EnsureRoom(roomName)
		if err != nil {
			return nil, err
		}
		room.ops.Lock()
		if cur, ok := c.reg.Lookup(roomName); ok && cur == room {
			return room, nil
		}
		room.ops.Unlock()
	}
}

// lockRoom is ensureAndLock for operations that must not create the
// room: reports false if roomName is not registered.
func (c *Core) lockRoom(roomName string) (*Room, bool) {
	for {
		room, ok := c.reg.Lookup(roomName)
		if !ok {
			return nil, false
		}
		room.ops.Lock()
		if cur, ok := c.reg.Lookup(roomName); ok && cur == room {
			return room, true
		}
		room.ops.Unlock()
	}
}

func (c *Core) persistJoin(ctx context.Context, roomName, username string) error {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.store.UpsertRoom(pctx, roomName); err != nil {
		return c.persistErr(err)
	}
	if err := c.store.AddMember(pctx, roomName, username); err != nil {
		return c.persistErr(err)
	}
	return nil
}

func (c *Core) persistErr(err error) error {
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrPersistenceTimeout, err)
	default:
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
}
