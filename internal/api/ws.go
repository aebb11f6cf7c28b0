package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Plan event subscriptions over WebSocket, framed like
// graphql-transport-ws so stock clients can drive it.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// WatchWSHandler handles /v1/watch/ws. A subscribe names a scenario
// through the scenarioId variable; the selected field narrows which
// plan events flow: planEvents (all), planCompleted, planFailed.
func (s *Server) WatchWSHandler(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		scenarioID string
		ch         chan SSEEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// One writer mutex: keepalive and fanout goroutines share the conn.
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			sid := ""
			if pl.Variables != nil {
				if v, ok := pl.Variables["scenarioId"].(string); ok {
					sid = v
				}
			}
			if sid == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"scenarioId required"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			if _, err := s.Store.GetScenario(r.Context(), pr.Tenant, sid); err != nil {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"scenario not found"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			field := "planEvents"
			ql := strings.ToLower(pl.Query)
			if strings.Contains(ql, "plancompleted") {
				field = "planCompleted"
			}
			if strings.Contains(ql, "planfailed") {
				field = "planFailed"
			}
			ch := s.Broker.Subscribe(sid)
			subs[msg.ID] = sub{scenarioID: sid, ch: ch}
			go func(id string, c chan SSEEvent, field string) {
				for evt := range c {
					if field == "planCompleted" && evt.Type != "plan.completed" {
						continue
					}
					if field == "planFailed" && evt.Type != "plan.failed" {
						continue
					}
					data := map[string]any{field: map[string]any{"event": evt.Type, "data": evt.Data}}
					payload, _ := json.Marshal(map[string]any{"data": data})
					if write(wsMessage{Type: "next", ID: id, Payload: payload}) != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, field)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.scenarioID, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.scenarioID, s0.ch)
		delete(subs, id)
	}
}
