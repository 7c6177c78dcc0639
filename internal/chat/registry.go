package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Registry is the authoritative in-memory map of rooms: who is a
// member, and which live sessions are attached for delivery. Those are
// distinct relations — membership is a durable fact that survives
// disconnect, delivery targeting lasts only as long as the session.
//
// The registry is owned by the process and passed by handle; no
// component reads or writes room state by any other path.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Room holds one room's membership and delivery targets. All mutations
// on a room are linearized by the core via ops; different rooms
// proceed concurrently.
type Room struct {
	name      string
	createdAt time.Time

	// ops serializes the whole mutate-persist-broadcast pipeline for
	// this room so all three stages observe the same order.
	ops sync.Mutex

	mu        sync.RWMutex
	members   []string
	memberSet map[string]struct{}
	targets   map[string]Session
}

func newRoom(name string) *Room {
	return &Room{
		name:      name,
		createdAt: time.Now().UTC(),
		memberSet: make(map[string]struct{}),
		targets:   make(map[string]Session),
	}
}

// EnsureRoom returns the room, creating it if this is the first join
// to target it. Fails only on a malformed name.
func (reg *Registry) EnsureRoom(name string) (*Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidInput
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[name]
	if !ok {
		room = newRoom(name)
		reg.rooms[name] = room
	}
	return room, nil
}

// Lookup returns the room if any join has ever created it.
func (reg *Registry) Lookup(name string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[name]
	return room, ok
}

// DetachAll removes the session from every room's delivery-target set.
// Called on disconnect; membership records are deliberately left
// untouched.
func (reg *Registry) DetachAll(sess Session) {
	reg.mu.RLock()
	rooms := lo.Values(reg.rooms)
	reg.mu.RUnlock()
	for _, room := range rooms {
		room.DetachSession(sess.ID())
	}
}

// evictIfUnused drops a room that holds no members and no targets.
// Used to roll back a room created by a join whose persistence failed.
func (reg *Registry) evictIfUnused(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[name]
	if !ok {
		return
	}
	room.mu.RLock()
	unused := len(room.members) == 0 && len(room.targets) == 0
	room.mu.RUnlock()
	if unused {
		delete(reg.rooms, name)
	}
}

// warm seeds a room from the durable mirror at boot.
func (reg *Registry) warm(name string, createdAt time.Time, members []string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[name]; ok {
		return
	}
	room := newRoom(name)
	room.createdAt = createdAt
	for _, m := range members {
		room.members = append(room.members, m)
		room.memberSet[m] = struct{}{}
	}
	reg.rooms[name] = room
}

func (r *Room) Name() string { return r.name }

// AddMember records membership, keeping join order. Adding an existing
// member is a no-op reporting alreadyMember=true.
func (r *Room) AddMember(username string) (alreadyMember bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberSet[username]; ok {
		return true
	}
	r.memberSet[username] = struct{}{}
	r.members = append(r.members, username)
	return false
}

// removeMember rolls back an AddMember whose persistence failed. Not
// part of the public contract: rooms never lose members otherwise.
func (r *Room) removeMember(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memberSet[username]; !ok {
		return
	}
	delete(r.memberSet, username)
	for i, m := range r.members {
		if m == username {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
}

// AttachSession registers a live delivery target. It does not imply
// membership; callers wanting join semantics go through the core.
func (r *Room) AttachSession(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[sess.ID()] = sess
}

// DetachSession removes a delivery target; no-op if absent.
func (r *Room) DetachSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, sessionID)
}

// Members returns the member list in join order, as a copy.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

// HasTarget reports whether the session is currently attached.
func (r *Room) HasTarget(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[sessionID]
	return ok
}

// broadcast fans one event out to every current delivery target.
// Deliver is non-blocking, so a slow session cannot stall the room.
func (r *Room) broadcast(ev Event) {
	r.mu.RLock()
	targets := lo.Values(r.targets)
	r.mu.RUnlock()
	for _, t := range targets {
		t.Deliver(ev)
	}
}
