package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/config"
	"chatrelay/internal/web"
)

// Service exposes the core over HTTP and the WebSocket live channel.
// Both entry points call the same Join/Send operations; there is no
// per-entry-point variant of either.
type Service struct {
	core     *Core
	log      zerolog.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
	wsCfg    config.WebSocketConfig
}

func NewService(core *Core, log zerolog.Logger, wsCfg config.WebSocketConfig) *Service {
	return &Service{
		core:     core,
		log:      log,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		wsCfg: wsCfg,
	}
}

type joinRoomRequest struct {
	Username string `json:"username" validate:"required"`
	RoomName string `json:"roomName" validate:"required"`
}

type sendMessageRequest struct {
	Username string `json:"username" validate:"required"`
	RoomName string `json:"roomName" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

// JoinRoom handles POST /api/join-room.
func (s *Service) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var in joinRoomRequest
	if err := web.DecodeJSON(r, &in); err != nil {
		web.Error(w, http.StatusBadRequest, "bad body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		web.Error(w, http.StatusBadRequest, "username and roomName are required")
		return
	}

	res, err := s.core.Join(r.Context(), in.Username, in.RoomName, nil)
	if err != nil {
		s.writeError(w, err, "failed to join room")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{
		"message": "Joined room: " + res.Room,
		"room":    res.Room,
		"users":   res.Users,
	})
}

// SendMessage handles POST /api/send-message.
func (s *Service) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in sendMessageRequest
	if err := web.DecodeJSON(r, &in); err != nil {
		web.Error(w, http.StatusBadRequest, "bad body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		web.Error(w, http.StatusBadRequest, "username, roomName and message are required")
		return
	}

	if _, err := s.core.Send(r.Context(), in.Username, in.RoomName, in.Message); err != nil {
		s.writeError(w, err, "failed to send message")
		return
	}
	web.JSON(w, http.StatusOK, map[string]string{"message": "Message sent successfully"})
}

// RoomHistory handles GET /api/room-history/{roomName}.
func (s *Service) RoomHistory(w http.ResponseWriter, r *http.Request) {
	roomName := web.Param(r, "roomName")
	limit := web.QueryInt(r, "limit", 0)

	msgs, err := s.core.History(r.Context(), roomName, limit)
	if err != nil {
		s.writeError(w, err, "failed to retrieve room history")
		return
	}
	web.JSON(w, http.StatusOK, msgs)
}

// ServeWS handles GET /ws: one session per connection.
func (s *Service) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newWSSession(uuid.NewString(), conn, s.wsCfg, s.log)
	s.log.Debug().Str("session_id", sess.ID()).Msg("session connected")

	go sess.writePump()
	go sess.readPump(s.core.Registry(), s.handleEvent)
}

type wsEnvelope struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	RoomName string `json:"roomName"`
	Message  string `json:"message"`
}

// handleEvent dispatches one inbound live-channel event. The live
// channel has no response path, so failures become error events to the
// offending session only; one session's bad event never disturbs
// another's.
func (s *Service) handleEvent(sess *wsSession, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("session_id", sess.ID()).Msg("event handler panic")
			sess.Deliver(errorEvent(CodeInternalError, "internal error"))
		}
	}()

	var ev wsEnvelope
	if err := json.Unmarshal(data, &ev); err != nil {
		sess.Deliver(errorEvent(CodeBadRequest, "invalid event format"))
		return
	}

	ctx := context.Background()

	switch ev.Type {
	case TypeJoinRoom:
		if _, err := s.core.Join(ctx, ev.Username, ev.RoomName, sess); err != nil {
			s.wsError(sess, err, "join failed")
		}
	case TypeChatMessage:
		if _, err := s.core.Send(ctx, ev.Username, ev.RoomName, ev.Message); err != nil {
			s.wsError(sess, err, "send failed")
		}
	case TypeLeaveRoom:
		if err := s.core.Leave(ev.RoomName, sess); err != nil {
			s.wsError(sess, err, "leave failed")
		}
	default:
		sess.Deliver(errorEvent(CodeBadRequest, "unknown event type"))
	}
}

func (s *Service) wsError(sess *wsSession, err error, msg string) {
	s.log.Warn().Err(err).Str("session_id", sess.ID()).Msg(msg)
	sess.Deliver(errorEvent(wsCode(err), err.Error()))
}

func wsCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrEmptyMessage):
		return CodeBadRequest
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	default:
		return CodeInternalError
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrEmptyMessage):
		web.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRoomNotFound):
		web.Error(w, http.StatusNotFound, "Room not found")
	default:
		s.log.Error().Err(err).Msg(msg)
		web.Error(w, http.StatusInternalServerError, msg)
	}
}
