package api

import (
    "sync"
)

// SSEEvent is one event on a scenario channel, delivered to SSE and
// websocket watchers.
type SSEEvent struct {
    Type string
    Data map[string]any
}

// Broker is the process-local event fan-out, keyed by scenario id.
// Slow subscribers drop events rather than block the publisher.
type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan SSEEvent]struct{} // scenarioId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(scenarioID string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[scenarioID] == nil { b.subs[scenarioID] = map[chan SSEEvent]struct{}{} }
    b.subs[scenarioID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

// Unsubscribe removes ch and closes it. Calling it twice for the same
// channel is a no-op, so stream teardown paths may overlap.
func (b *Broker) Unsubscribe(scenarioID string, ch chan SSEEvent) {
    b.mu.Lock()
    m := b.subs[scenarioID]
    if m == nil {
        b.mu.Unlock()
        return
    }
    if _, ok := m[ch]; !ok {
        b.mu.Unlock()
        return
    }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, scenarioID) }
    b.mu.Unlock()
    close(ch)
}

func (b *Broker) Publish(scenarioID string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[scenarioID]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
