package stream

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/models"
)

// EventType tags the payload carried by a stream event.
type EventType string

const (
	// EventLog carries one execution log entry.
	EventLog EventType = "log"
	// EventBlocks carries a full block snapshot after a mutation.
	EventBlocks EventType = "blocks"
)

// Event is one message pushed to stream subscribers.
type Event struct {
	Type       EventType `json:"type"`
	StrategyID string    `json:"strategyId"`
	Payload    any       `json:"payload"`
}

// Hub fans events out to subscribers. A subscriber is keyed by the strategy
// it watches; the empty key receives everything. Slow subscribers are never
// blocked on, their events are dropped instead.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	logger *zap.Logger

	dropped uint64
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   map[string][]chan Event{},
		logger: logger,
	}
}

// Subscribe registers interest in one strategy's events, or in all events
// when strategyID is empty. The returned cancel func must be called when the
// consumer goes away.
func (h *Hub) Subscribe(strategyID string, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	h.mu.Lock()
	h.subs[strategyID] = append(h.subs[strategyID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		chans := h.subs[strategyID]
		for i, c := range chans {
			if c == ch {
				h.subs[strategyID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Emit publishes an execution log entry. Satisfies the simulator's sink.
func (h *Hub) Emit(strategyID string, entry models.LogEntry) {
	h.publish(Event{Type: EventLog, StrategyID: strategyID, Payload: entry})
}

// EmitBlocks publishes a post-mutation block snapshot.
func (h *Hub) EmitBlocks(strategyID string, blocks []models.Block) {
	h.publish(Event{Type: EventBlocks, StrategyID: strategyID, Payload: blocks})
}

func (h *Hub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{ev.StrategyID, ""} {
		for _, ch := range h.subs[key] {
			select {
			case ch <- ev:
			default:
				// Drop when subscriber is slow; hub must not block.
				if atomic.AddUint64(&h.dropped, 1)%100 == 1 {
					h.logger.Warn("stream subscriber slow, dropping events",
						zap.String("strategy_id", ev.StrategyID),
						zap.Uint64("dropped_total", atomic.LoadUint64(&h.dropped)),
					)
				}
			}
		}
	}
}

// Dropped reports how many events were discarded for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
