package stream

import (
	"testing"

	"github.com/XXUCHAN/gapboard/internal/models"
)

func TestHubRoutesByStrategy(t *testing.T) {
	h := NewHub(nil)

	scoped, cancelScoped := h.Subscribe("strat-1", 4)
	defer cancelScoped()
	global, cancelGlobal := h.Subscribe("", 4)
	defer cancelGlobal()

	h.Emit("strat-1", models.LogEntry{ID: "e1", Status: models.LogPending})
	h.Emit("strat-2", models.LogEntry{ID: "e2", Status: models.LogPending})

	ev := <-scoped
	if ev.Type != EventLog || ev.StrategyID != "strat-1" {
		t.Fatalf("scoped event = %+v", ev)
	}
	select {
	case ev := <-scoped:
		t.Fatalf("scoped subscriber got foreign event %+v", ev)
	default:
	}

	first := <-global
	second := <-global
	if first.StrategyID != "strat-1" || second.StrategyID != "strat-2" {
		t.Fatalf("global saw %s then %s", first.StrategyID, second.StrategyID)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub(nil)

	ch, cancel := h.Subscribe("strat-1", 1)
	defer cancel()

	h.EmitBlocks("strat-1", nil)
	h.EmitBlocks("strat-1", nil) // buffer full, dropped

	if got := h.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d, want 1", got)
	}
	<-ch
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(nil)

	ch, cancel := h.Subscribe("strat-1", 1)
	cancel()

	h.Emit("strat-1", models.LogEntry{ID: "e1"})
	select {
	case <-ch:
		t.Fatal("cancelled subscriber received event")
	default:
	}
}
