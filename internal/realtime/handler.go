package realtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/seangolding876/partsfinda-backend/internal/conversations"
	"github.com/seangolding876/partsfinda-backend/internal/messages"
	"github.com/seangolding876/partsfinda-backend/pkg/auth"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

// Handler upgrades authenticated HTTP requests into hub clients.
type Handler struct {
	hub           *Hub
	logg          *logger.Logger
	cfg           config.RealtimeConfig
	jwtCfg        config.JWTConfig
	messages      messages.Service
	conversations conversations.Service
	upgrader      websocket.Upgrader
}

// HandlerParams configure the websocket handler.
type HandlerParams struct {
	Hub           *Hub
	Logger        *logger.Logger
	Realtime      config.RealtimeConfig
	JWT           config.JWTConfig
	Messages      messages.Service
	Conversations conversations.Service
}

// NewHandler validates and wires the websocket entry point.
func NewHandler(params HandlerParams) (*Handler, error) {
	if params.Hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "hub required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Messages == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "messages service required")
	}
	if params.Conversations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "conversations service required")
	}
	return &Handler{
		hub:           params.Hub,
		logg:          params.Logger,
		cfg:           params.Realtime,
		jwtCfg:        params.JWT,
		messages:      params.Messages,
		conversations: params.Conversations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers cannot set headers on websocket dials, so the token
			// arrives as a query parameter and origin checks happen at the
			// proxy layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// ServeHTTP authenticates the token, upgrades the connection and starts the
// client's pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ParseAccessToken(h.jwtCfg, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure to the client.
		h.logg.Error(r.Context(), "websocket upgrade failed", pkgerrors.Wrap(pkgerrors.CodeTransportUnavailable, err, "upgrade connection"))
		return
	}

	// The request context dies when ServeHTTP returns; the pumps outlive it.
	ctx := h.logg.WithUserID(context.WithoutCancel(r.Context()), claims.UserID.String())
	client := newClient(h.hub, conn, claims.UserID, h.cfg, h.logg, h.messages, h.conversations)

	go client.writePump(ctx)
	go client.readPump(ctx)
}

func bearerToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
