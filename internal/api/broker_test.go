package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    sid := "sc_1"
    ch := b.Subscribe(sid)

    evt := SSEEvent{Type: "plan.queued", Data: map[string]any{"planId": "p1"}}
    b.Publish(sid, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["planId"].(string) != "p1" { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(sid, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        t.Fatal("channel not closed after unsubscribe")
    }
}

func TestBrokerUnsubscribeTwice(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("sc_2")
    b.Unsubscribe("sc_2", ch)
    // second call must be a no-op, not a double close
    b.Unsubscribe("sc_2", ch)
}

func TestBrokerPublishToOtherScenario(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("sc_a")
    defer b.Unsubscribe("sc_a", ch)

    b.Publish("sc_b", SSEEvent{Type: "plan.completed"})
    select {
    case evt := <-ch:
        t.Fatalf("unexpected event on other channel: %+v", evt)
    case <-time.After(50 * time.Millisecond):
    }
}

func TestBrokerSlowSubscriberDrops(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("sc_slow")
    defer b.Unsubscribe("sc_slow", ch)

    // Buffer is 8; the publisher must never block past it.
    done := make(chan struct{})
    go func() {
        for i := 0; i < 50; i++ {
            b.Publish("sc_slow", SSEEvent{Type: "plan.queued", Data: map[string]any{"i": i}})
        }
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("publish blocked on a slow subscriber")
    }
}
