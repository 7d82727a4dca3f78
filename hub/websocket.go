package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/limits"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches the connection as a session.
// The client identity comes from the client_id query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("client_id")
	if err := limits.ValidateIdentifier(identity); err != nil {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ServeWS",
			"remote":   r.RemoteAddr,
			"error":    err.Error(),
		}).Warn("Websocket upgrade failed")
		return
	}

	s, err := h.Connect(r.Context(), identity, r.URL.Query().Get("name"))
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub stopped"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.writePump(conn, s)
	h.readPump(conn, s)
}

func (h *Hub) readPump(conn *websocket.Conn, s *Session) {
	defer func() {
		h.Disconnect(s)
		conn.Close()
	}()

	conn.SetReadLimit(limits.MaxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"function": "readPump",
					"session":  s.id,
					"error":    err.Error(),
				}).Warn("Websocket read failed")
			}
			return
		}

		ev, err := event.Unmarshal(frame)
		if err != nil {
			h.metrics.dropped.WithLabelValues("invalid").Inc()
			logrus.WithFields(logrus.Fields{
				"function": "readPump",
				"session":  s.id,
				"error":    err.Error(),
			}).Warn("Dropping malformed event")
			continue
		}
		h.Submit(s, ev)
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := event.Marshal(ev)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "writePump",
					"session":  s.id,
					"event":    ev.Name(),
					"error":    err.Error(),
				}).Error("Failed to encode event")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
