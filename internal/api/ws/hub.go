// Package ws carries the session websocket and its redis-backed mirror.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/gateway"
	"github.com/hushh/voicegate/internal/server/middleware"
	redisstore "github.com/hushh/voicegate/internal/store/redis"
)

// Hub upgrades session connections and runs their event loops.
type Hub struct {
	gw     *gateway.Gateway
	pubsub *redisstore.PubSub
}

func NewHub(gw *gateway.Gateway, pubsub *redisstore.PubSub) *Hub {
	return &Hub{gw: gw, pubsub: pubsub}
}

// ServeSession is the bidirectional session socket. One goroutine reads and
// handles inbound events strictly sequentially; no two events for the same
// session are ever processed concurrently, which is what keeps the turn
// state machine lock-free.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	sessionID := uuid.New()
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		sessionID = parsed
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sctx := gateway.SessionContext{
		SessionID: sessionID,
		UserID:    userID,
		RequestID: chimw.GetReqID(ctx),
	}
	defer h.gw.Sessions().Drop(sessionID)

	emit := func(env gateway.Envelope) error {
		raw, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("ws.Hub.ServeSession: encode: %w", err)
		}
		return conn.Write(ctx, websocket.MessageText, raw)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("user_id", userID.String()).
		Msg("session connected")

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				log.Debug().Str("session_id", sessionID.String()).Msg("session closed")
			} else {
				log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("session read")
			}
			return
		}

		var env gateway.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("malformed inbound event")
			continue
		}

		if err := h.gw.HandleEvent(ctx, sctx, env, emit); err != nil {
			log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Str("event_type", env.EventType).
				Msg("event handling failed")
		}
	}
}

// ServeSessionMirror streams the redis mirror of a session's outbound events.
// Used by operational tooling to tail a live conversation.
func (h *Hub) ServeSessionMirror(w http.ResponseWriter, r *http.Request) {
	sessionIDStr := chi.URLParam(r, "sessionID")
	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	channel := redisstore.SessionChannel(sessionID)

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
