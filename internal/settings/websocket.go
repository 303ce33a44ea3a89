package settings

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RTTObserver receives round trip times measured on the push channel.
type RTTObserver interface {
	Observe(client string, rtt time.Duration)
	Forget(client string)
}

// wsMessage is the outgoing WebSocket message format.
type wsMessage struct {
	Type   string         `json:"type"` // "snapshot", "change", "ping" or "error"
	Key    string         `json:"key,omitempty"`
	Value  any            `json:"value,omitempty"`
	Values map[string]any `json:"values,omitempty"`
	RTTms  float64        `json:"rtt_ms,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type  string          `json:"type"` // "set" or "reset"
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Keys  []string        `json:"keys"`
}

func (h *handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("settings: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	client := uuid.NewString()
	out := make(chan wsMessage, 64)
	done := make(chan struct{})

	send := func(m wsMessage) {
		select {
		case out <- m:
		case <-done:
		default:
			log.Printf("settings: client %s is not keeping up, dropping %s", client, m.Type)
		}
	}

	all, err := h.store.All(r.Context())
	if err != nil {
		log.Printf("settings: websocket snapshot: %v", err)
		return
	}
	send(wsMessage{Type: "snapshot", Values: all})

	unsubscribe := h.store.Subscribe(func(c Change) {
		send(wsMessage{Type: "change", Key: c.Key, Value: c.Value})
	})

	conn.SetPongHandler(func(payload string) error {
		sent, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil
		}
		rtt := time.Since(time.Unix(0, sent))
		if h.opts.Observer != nil {
			h.opts.Observer.Observe(client, rtt)
		}
		send(wsMessage{Type: "ping", RTTms: float64(rtt.Microseconds()) / 1000})
		return nil
	})

	go h.writeLoop(conn, out, done)

	defer func() {
		unsubscribe()
		close(done)
		if h.opts.Observer != nil {
			h.opts.Observer.Forget(client)
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("settings: websocket read: %v", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			send(wsMessage{Type: "error", Error: "invalid message format"})
			continue
		}

		switch req.Type {
		case "set":
			if err := h.store.Set(r.Context(), req.Key, req.Value); err != nil {
				send(wsMessage{Type: "error", Key: req.Key, Error: err.Error()})
			}
		case "reset":
			if err := h.store.Reset(r.Context(), req.Keys...); err != nil {
				send(wsMessage{Type: "error", Error: err.Error()})
			}
		default:
			send(wsMessage{Type: "error", Error: "unknown message type: " + req.Type})
		}
	}
}

// writeLoop is the only writer of data frames on conn. It also sends the
// pings whose pongs are timed by the read side.
func (h *handlers) writeLoop(conn *websocket.Conn, out <-chan wsMessage, done <-chan struct{}) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	ping := func() error {
		payload := strconv.FormatInt(time.Now().UnixNano(), 10)
		return conn.WriteControl(websocket.PingMessage, []byte(payload), time.Now().Add(writeWait))
	}
	if err := ping(); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case m := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				log.Printf("settings: websocket write: %v", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := ping(); err != nil {
				conn.Close()
				return
			}
		}
	}
}
