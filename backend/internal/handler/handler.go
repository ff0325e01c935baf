package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/itchan-dev/legorachat/backend/internal/fanout"
	"github.com/itchan-dev/legorachat/backend/internal/service"
	"github.com/itchan-dev/legorachat/shared/config"
	"github.com/itchan-dev/legorachat/shared/domain"
)

const defaultKeepAlive = 30 * time.Second

// LiveRegistry is the part of the fan-out registry the transports need.
type LiveRegistry interface {
	Register(userId domain.UserId) *fanout.Channel
	Deregister(ch *fanout.Channel)
}

// HealthChecker is used by the readiness probe.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth     service.AuthService
	thread   service.ThreadService
	message  service.MessageService
	live     LiveRegistry
	health   HealthChecker
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func New(auth service.AuthService, thread service.ThreadService, message service.MessageService, live LiveRegistry, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{
		auth:    auth,
		thread:  thread,
		message: message,
		live:    live,
		health:  health,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.Public.AllowedOrigins),
		},
	}
}

func (h *Handler) keepAlive() time.Duration {
	if h.cfg == nil || h.cfg.Public.KeepAliveInterval <= 0 {
		return defaultKeepAlive
	}
	return h.cfg.Public.KeepAliveInterval
}

// checkOrigin allows same-origin requests, non-browser clients and the
// configured origins. A "*" entry allows everything.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
