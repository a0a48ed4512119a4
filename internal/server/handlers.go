package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/fegerV/Stogram-sub001/internal/service"
	"github.com/gorilla/websocket"
)

type Handler struct {
	gateway  *service.GatewayService
	upgrader *websocket.Upgrader
}

func NewHandler(gateway *service.GatewayService) *Handler {
	return &Handler{
		gateway: gateway,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferPool: &sync.Pool{},
		},
	}
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	client := service.NewClient(userID, conn)
	h.gateway.HandleConn(r.Context(), client)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
