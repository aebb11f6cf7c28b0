// Package main runs a demo WebSocket client for plan events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create a small scenario
	body := []byte(`{"name":"ws-demo","numSites":12,"numWaterAreas":5,"numRainZones":3,"seed":7}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/scenarios", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "planner")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var sc struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sc); err != nil {
		log.Fatal(err)
	}
	if sc.ID == "" {
		log.Fatal("no scenario returned")
	}
	log.Printf("Scenario ID: %s", sc.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/watch/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "planner")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to planEvents
	payload := map[string]any{
		"query":     "subscription($scenarioId: ID!) { planEvents(scenarioId: $scenarioId) }",
		"variables": map[string]any{"scenarioId": sc.ID},
	}
	pl, _ := json.Marshal(payload)
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger plan events via a solve
	time.Sleep(500 * time.Millisecond)
	solveReq, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/v1/scenarios/%s/plans", base, sc.ID), bytes.NewReader([]byte("{}")))
	solveReq.Header.Set("Content-Type", "application/json")
	solveReq.Header.Set("X-Tenant-Id", "t_demo")
	solveReq.Header.Set("X-Role", "planner")
	_, _ = http.DefaultClient.Do(solveReq)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
