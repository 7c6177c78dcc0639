package chat

import (
	"context"
	"sync"
	"time"

	"chatrelay/internal/store"
)

// memStore is an in-memory Store used by the tests. failWith, when
// set, makes every write fail with that error.
type memStore struct {
	mu       sync.Mutex
	rooms    map[string]store.Room
	members  map[string][]string
	messages map[string][]store.Message
	nextID   int64
	nextSeq  int64
	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		rooms:    make(map[string]store.Room),
		members:  make(map[string][]string),
		messages: make(map[string][]store.Message),
	}
}

func (m *memStore) UpsertRoom(_ context.Context, name string) (store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return store.Room{}, m.failWith
	}
	if r, ok := m.rooms[name]; ok {
		return r, nil
	}
	m.nextID++
	r := store.Room{ID: m.nextID, Name: name, CreatedAt: time.Now().UTC()}
	m.rooms[name] = r
	return r, nil
}

func (m *memStore) AddMember(_ context.Context, roomName, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.rooms[roomName]; !ok {
		return store.ErrRoomNotFound
	}
	for _, u := range m.members[roomName] {
		if u == username {
			return nil
		}
	}
	m.members[roomName] = append(m.members[roomName], username)
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, roomName, username, text string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return store.Message{}, m.failWith
	}
	if _, ok := m.rooms[roomName]; !ok {
		return store.Message{}, store.ErrRoomNotFound
	}
	m.nextSeq++
	msg := store.Message{Seq: m.nextSeq, Room: roomName, Username: username, Text: text, CreatedAt: time.Now().UTC()}
	m.messages[roomName] = append(m.messages[roomName], msg)
	return msg, nil
}

func (m *memStore) History(_ context.Context, roomName string, limit int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomName]; !ok {
		return nil, store.ErrRoomNotFound
	}
	msgs := m.messages[roomName]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	out := make([]store.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *memStore) Members(_ context.Context, roomName string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.members[roomName]))
	copy(out, m.members[roomName])
	return out, nil
}

func (m *memStore) Rooms(_ context.Context) ([]store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) messageCount(roomName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[roomName])
}

func (m *memStore) memberList(roomName string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.members[roomName]))
	copy(out, m.members[roomName])
	return out
}

func (m *memStore) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// recordSession is a Session that records everything delivered to it.
type recordSession struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newRecordSession(id string) *recordSession {
	return &recordSession{id: id}
}

func (s *recordSession) ID() string { return s.id }

func (s *recordSession) Deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSession) delivered() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordSession) messagesOnly() []Event {
	var out []Event
	for _, ev := range s.delivered() {
		if ev.Type == TypeMessage {
			out = append(out, ev)
		}
	}
	return out
}
