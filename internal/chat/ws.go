package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/config"
)

// wsSession is one live connection: the unit of delivery targeting.
// Outbound events go through a buffered send channel drained by
// writePump; a full buffer or a gone session drops the event rather
// than blocking the room.
type wsSession struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	cfg  config.WebSocketConfig
	log  zerolog.Logger
}

func newWSSession(id string, conn *websocket.Conn, cfg config.WebSocketConfig, log zerolog.Logger) *wsSession {
	return &wsSession{
		id:   id,
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
		cfg:  cfg,
		log:  log.With().Str("session_id", id).Logger(),
	}
}

func (s *wsSession) ID() string { return s.id }

// Deliver implements Session. Best-effort: never blocks, never errors
// back into the core.
func (s *wsSession) Deliver(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal event")
		return
	}
	select {
	case <-s.done:
	case s.send <- data:
	default:
		s.log.Debug().Str("event_type", ev.Type).Msg("send buffer full, event dropped")
	}
}

func (s *wsSession) close() {
	s.once.Do(func() { close(s.done) })
}

// readPump consumes inbound events until the connection dies, then
// detaches the session from every room. In-flight operations the
// session started still run to completion.
func (s *wsSession) readPump(reg *Registry, handle func(*wsSession, []byte)) {
	defer func() {
		reg.DetachAll(s)
		s.close()
		s.conn.Close()
		s.log.Debug().Msg("session closed")
	}()

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		handle(s, message)
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
