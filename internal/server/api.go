package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/chat"
)

func newAPI(svc *chat.Service) http.Handler {
	r := chi.NewRouter()

	r.Post("/join-room", svc.JoinRoom)
	r.Post("/send-message", svc.SendMessage)
	r.Get("/room-history/{roomName}", svc.RoomHistory)

	return r
}
