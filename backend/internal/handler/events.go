package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/itchan-dev/legorachat/backend/internal/fanout"
	"github.com/itchan-dev/legorachat/shared/domain"
	mw "github.com/itchan-dev/legorachat/shared/middleware"
	"github.com/itchan-dev/legorachat/shared/logger"
	"github.com/itchan-dev/legorachat/shared/utils"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

var (
	connectedPayload = mustEncode(domain.Event{Type: domain.EventConnected})
	pingPayload      = mustEncode(domain.Event{Type: domain.EventPing})
)

func mustEncode(ev domain.Event) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	return b
}

// Events streams live updates for the user in the path as server-sent
// events, one JSON object per "data:" record. The user id is taken as
// given since EventSource cannot set headers.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	userId, err := mw.ParseUserId(chi.URLParam(r, "userId"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Log.Error("streaming not supported by response writer", "error", err)
		return
	}

	ch := h.live.Register(userId)
	defer h.live.Deregister(ch)

	log := logger.Log.With("user_id", userId, "transport", "sse")
	log.Info("live channel opened")
	start := time.Now()

	write := func(payload []byte) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			log.Warn("client disconnected during event stream", "error", err, "duration", time.Since(start))
			return false
		}
		if err := rc.Flush(); err != nil {
			return false
		}
		return true
	}

	if !write(connectedPayload) {
		return
	}

	ticker := time.NewTicker(h.keepAlive())
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("live channel closed by client", "duration", time.Since(start))
			return
		case <-ch.Done():
			log.Info("live channel closed by server", "dropped", ch.Dropped(), "duration", time.Since(start))
			return
		case payload := <-ch.Events():
			if !write(payload) {
				return
			}
		case <-ticker.C:
			if !write(pingPayload) {
				return
			}
		}
	}
}

// EventsWS is the WebSocket rendition of Events. Each text frame carries
// one JSON event. Frames sent by the client are ignored.
func (h *Handler) EventsWS(w http.ResponseWriter, r *http.Request) {
	userId, err := mw.ParseUserId(chi.URLParam(r, "userId"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		logger.Log.Warn("websocket upgrade failed", "user_id", userId, "error", err)
		return
	}
	defer conn.Close()

	ch := h.live.Register(userId)
	defer h.live.Deregister(ch)

	log := logger.Log.With("user_id", userId, "transport", "websocket")
	log.Info("live channel opened")

	keepAlive := h.keepAlive()
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(wsMaxMessageSize)
		conn.SetReadDeadline(time.Now().Add(2 * keepAlive))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * keepAlive))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(2 * keepAlive))
		}
	}()

	write := func(payload []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn("failed to write live event", "error", err)
			return false
		}
		return true
	}

	if !write(connectedPayload) {
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			log.Info("live channel closed by client")
			return
		case <-ch.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, closeFrame(ch))
			log.Info("live channel closed by server", "dropped", ch.Dropped())
			return
		case payload := <-ch.Events():
			if !write(payload) {
				return
			}
		case <-ticker.C:
			if !write(pingPayload) {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeFrame tells a client dropped for falling behind apart from a
// server shutdown.
func closeFrame(ch *fanout.Channel) []byte {
	if ch.Dropped() {
		return websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "event queue overflow, reconnect")
	}
	return websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
}
