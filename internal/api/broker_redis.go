package api

import (
    "context"
    "encoding/json"
    "os"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// EventBroker is the pub/sub surface handlers publish to and streams
// subscribe through.
type EventBroker interface {
    Subscribe(scenarioID string) chan SSEEvent
    Unsubscribe(scenarioID string, ch chan SSEEvent)
    Publish(scenarioID string, evt SSEEvent)
}

// RedisBroker implements EventBroker over Redis Pub/Sub so plan events
// reach watchers connected to any api replica.
type RedisBroker struct {
    rdb *redis.Client
    mu  sync.Mutex
    ps  map[chan SSEEvent]*redis.PubSub
}

func NewRedisBroker() (*RedisBroker, error) {
    opt, err := redis.ParseURL(os.Getenv("REDIS_URL"))
    if err != nil { return nil, err }
    return &RedisBroker{rdb: redis.NewClient(opt), ps: map[chan SSEEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(scenarioID string) chan SSEEvent {
    ch := make(chan SSEEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(scenarioID))
    // initial consume to ensure the subscription is live
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.ps[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

// Unsubscribe closes the underlying PubSub; the reader goroutine owns
// ch and closes it once the message channel drains.
func (b *RedisBroker) Unsubscribe(scenarioID string, ch chan SSEEvent) {
    b.mu.Lock()
    ps := b.ps[ch]
    delete(b.ps, ch)
    b.mu.Unlock()
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(scenarioID string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    _ = b.rdb.Publish(ctx, b.chanName(scenarioID), data).Err()
}

func (b *RedisBroker) chanName(scenarioID string) string { return "scenario:" + scenarioID }
