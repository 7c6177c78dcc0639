package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/store"
)

// fakeStore is just enough of store.Store to exercise the router.
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[string]store.Room
	members  map[string][]string
	messages map[string][]store.Message
	seq      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    map[string]store.Room{},
		members:  map[string][]string{},
		messages: map[string][]store.Message{},
	}
}

func (f *fakeStore) UpsertRoom(_ context.Context, name string) (store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[name]; ok {
		return r, nil
	}
	r := store.Room{ID: int64(len(f.rooms) + 1), Name: name, CreatedAt: time.Now().UTC()}
	f.rooms[name] = r
	return r, nil
}

func (f *fakeStore) AddMember(_ context.Context, roomName, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomName]; !ok {
		return store.ErrRoomNotFound
	}
	for _, u := range f.members[roomName] {
		if u == username {
			return nil
		}
	}
	f.members[roomName] = append(f.members[roomName], username)
	return nil
}

func (f *fakeStore) AppendMessage(_ context.Context, roomName, username, text string) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomName]; !ok {
		return store.Message{}, store.ErrRoomNotFound
	}
	f.seq++
	m := store.Message{Seq: f.seq, Room: roomName, Username: username, Text: text, CreatedAt: time.Now().UTC()}
	f.messages[roomName] = append(f.messages[roomName], m)
	return m, nil
}

func (f *fakeStore) History(_ context.Context, roomName string, _ int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomName]; !ok {
		return nil, store.ErrRoomNotFound
	}
	return append([]store.Message(nil), f.messages[roomName]...), nil
}

func (f *fakeStore) Members(_ context.Context, roomName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[roomName]...), nil
}

func (f *fakeStore) Rooms(_ context.Context) ([]store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out, nil
}

func newTestHandler() http.Handler {
	cfg := config.Config{
		CORSOrigins: "http://localhost:5173",
		WS: config.WebSocketConfig{
			PingInterval:   30 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     256,
		},
	}
	core := chat.NewCore(chat.NewRegistry(), newFakeStore(), zerolog.Nop(), time.Second)
	svc := chat.NewService(core, zerolog.Nop(), cfg.WS)
	return New(cfg, svc, zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	req := require.New(t)
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func TestAPIRoutesMounted(t *testing.T) {
	req := require.New(t)
	h := newTestHandler()

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/join-room", strings.NewReader(`{"username":"alice","roomName":"lobby"}`))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusOK, rec.Code)

	var out map[string]any
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	req.Equal("lobby", out["room"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/room-history/lobby", nil))
	req.Equal(http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/room-history/ghost-room", nil))
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
