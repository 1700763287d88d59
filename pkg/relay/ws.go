package relay

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	// far above any valid upsert; oversized names are refused by the store instead
	maxMessageSize = 64 * 1024
)

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(request *http.Request) bool {
		origin := request.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request and runs the session until either side goes away.
func (r *Relay) ServeWS(writer http.ResponseWriter, request *http.Request) {
	conn, err := r.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		r.log.Err(err).Msg("failed to upgrade")
		return
	}

	sess, err := r.Join()
	if err != nil {
		r.log.Err(err).Msg("failed to join")
		_ = conn.Close()
		return
	}

	go r.writePump(conn, sess)
	r.readPump(conn, sess)
}

func (r *Relay) readPump(conn *websocket.Conn, sess *Session) {
	defer func() {
		r.Leave(sess)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.log.Err(err).Str("session", sess.ID).Msg("failed to read message")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := r.Handle(sess, message); err != nil {
			if errors.Is(err, ErrNotLive) {
				return
			}
			r.log.Debug().Err(err).Str("session", sess.ID).Msg("dropped frame")
		}
	}
}

func (r *Relay) writePump(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sess.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				r.log.Debug().Err(err).Str("session", sess.ID).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
