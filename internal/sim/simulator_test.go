package sim

import (
	"errors"
	"testing"

	"github.com/XXUCHAN/gapboard/internal/models"
)

type captureSink struct {
	entries []models.LogEntry
}

func (c *captureSink) Emit(strategyID string, entry models.LogEntry) {
	c.entries = append(c.entries, entry)
}

func TestStartEmitsLifecycleEntries(t *testing.T) {
	sink := &captureSink{}
	s := NewSeeded(sink, nil, 10000, 1)

	exec, err := s.Start("strat-1", []string{"act-1", "act-2"}, []string{"Binance Buy Spot Max Long"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if exec.ID == "" {
		t.Fatal("execution id empty")
	}
	if len(sink.entries) != 2 {
		t.Fatalf("entries = %d, want pending and executing", len(sink.entries))
	}
	pending, executing := sink.entries[0], sink.entries[1]
	if pending.Status != models.LogPending || executing.Status != models.LogExecuting {
		t.Fatalf("statuses = %s, %s", pending.Status, executing.Status)
	}
	if pending.ID != exec.ID || executing.ID != exec.ID {
		t.Fatal("lifecycle entries must share the execution id")
	}
	if pending.PnL == nil || *pending.PnL != 0 {
		t.Fatalf("pending pnl = %v, want 0", pending.PnL)
	}
	if pending.Capital == nil || *pending.Capital != 10000 {
		t.Fatalf("pending capital = %v", pending.Capital)
	}

	if got := len(s.Active()); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}
}

func TestStartRequiresActions(t *testing.T) {
	s := NewSeeded(&captureSink{}, nil, 10000, 1)
	if _, err := s.Start("strat-1", nil, nil); !errors.Is(err, ErrNoActions) {
		t.Fatalf("err = %v, want ErrNoActions", err)
	}
}

func TestStopEmitsTerminalEntry(t *testing.T) {
	sink := &captureSink{}
	s := NewSeeded(sink, nil, 10000, 7)

	exec, err := s.Start("strat-1", []string{"act-1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	entry, err := s.Stop(exec.ID)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if entry.ID != exec.ID || entry.Status != models.LogSuccess {
		t.Fatalf("terminal entry = %+v", entry)
	}
	if entry.PnL == nil {
		t.Fatal("terminal entry missing pnl")
	}
	// rand in [0,1) bounds the pnl to [-160, 640] at 10000 capital.
	if *entry.PnL < -160 || *entry.PnL > 640 {
		t.Fatalf("pnl = %v out of range", *entry.PnL)
	}
	if entry.ROIPercent == nil {
		t.Fatal("terminal entry missing roi")
	}
	wantROI := *entry.PnL / 10000 * 100
	if diff := *entry.ROIPercent - wantROI; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("roi = %v for pnl %v, want %v", *entry.ROIPercent, *entry.PnL, wantROI)
	}

	if got := len(s.Active()); got != 0 {
		t.Fatalf("active = %d after stop, want 0", got)
	}

	// Executions never complete twice.
	if _, err := s.Stop(exec.ID); !errors.Is(err, ErrExecutionNotFound) {
		t.Fatalf("double stop: err = %v, want ErrExecutionNotFound", err)
	}
}

func TestStopUnknownExecution(t *testing.T) {
	s := NewSeeded(&captureSink{}, nil, 10000, 1)
	if _, err := s.Stop("nope"); !errors.Is(err, ErrExecutionNotFound) {
		t.Fatalf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestHistoryPerStrategy(t *testing.T) {
	s := NewSeeded(&captureSink{}, nil, 10000, 1)

	a, _ := s.Start("strat-a", []string{"x"}, nil)
	s.Start("strat-b", []string{"y"}, nil)
	s.Stop(a.ID)

	if got := len(s.History("strat-a")); got != 3 {
		t.Fatalf("strat-a history = %d, want 3", got)
	}
	if got := len(s.History("strat-b")); got != 2 {
		t.Fatalf("strat-b history = %d, want 2", got)
	}
	if got := len(s.History("unknown")); got != 0 {
		t.Fatalf("unknown history = %d, want 0", got)
	}
}
