// internal/httpserver/live.go
//
// GET /api/live: websocket feed of state changes.
//
// The connection receives the current state right away, then one message per
// transition (tick, guess, reset). Clients never send anything meaningful;
// the read side only exists to notice close frames and answer pings.

package httpserver

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// LiveConfig holds websocket tuning.
type LiveConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultLiveConfig returns the websocket settings used by New.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// checkOrigin accepts same-host pages, configured client origins, and
// non-browser clients that send no Origin at all.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	return slices.Contains(s.cfg.ClientOrigins, origin)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	log.Debug().Str("session", ctrl.ID()).Msg("live connected")
	defer log.Debug().Str("session", ctrl.ID()).Msg("live disconnected")

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ping := time.NewTicker(s.live.PingInterval)
	defer ping.Stop()

	if err := s.writeState(conn, viewOf(ctrl.Snapshot())); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeState(conn, viewOf(snap)); err != nil {
				log.Debug().Err(err).Str("session", ctrl.ID()).Msg("live write")
				return
			}
		case <-ping.C:
			s.sessions.Touch(ctrl.ID())
			_ = conn.SetWriteDeadline(time.Now().Add(s.live.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeState(conn *websocket.Conn, v stateView) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.live.WriteTimeout))
	return conn.WriteJSON(v)
}

// readPump drains the connection until it fails or closes, then closes done.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(s.live.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.live.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.live.ReadTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("live read")
			}
			return
		}
	}
}
