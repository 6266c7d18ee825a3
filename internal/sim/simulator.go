package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/models"
)

var (
	// ErrNoActions means an execution was started without any action blocks.
	ErrNoActions = errors.New("no action blocks selected")
	// ErrExecutionNotFound means the execution id is unknown or already stopped.
	ErrExecutionNotFound = errors.New("execution not found")
)

// Sink receives execution log entries as they are produced.
type Sink interface {
	Emit(strategyID string, entry models.LogEntry)
}

// Execution is one simulated run of a set of action blocks.
type Execution struct {
	ID         string   `json:"id"`
	StrategyID string   `json:"strategyId"`
	ActionIDs  []string `json:"actionIds"`
	Labels     []string `json:"labels,omitempty"`
	StartedAt  int64    `json:"startedAt"`
}

// Simulator runs make-believe executions. Starting one synchronously emits
// a pending and then an executing entry under a single stable id. Nothing
// completes on its own; the terminal entry is produced only by an explicit
// Stop. PnL is pseudo-random and purely illustrative.
type Simulator struct {
	sink    Sink
	logger  *zap.Logger
	capital float64

	mu      sync.Mutex
	rng     *rand.Rand
	active  map[string]Execution
	history map[string][]models.LogEntry

	newID func() string
	now   func() time.Time
}

const historyLimit = 500

func New(sink Sink, logger *zap.Logger, capitalBase float64) *Simulator {
	return NewSeeded(sink, logger, capitalBase, time.Now().UnixNano())
}

// NewSeeded fixes the PnL sequence, for tests.
func NewSeeded(sink Sink, logger *zap.Logger, capitalBase float64, seed int64) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capitalBase <= 0 {
		capitalBase = 10000
	}
	return &Simulator{
		sink:    sink,
		logger:  logger,
		capital: capitalBase,
		rng:     rand.New(rand.NewSource(seed)),
		active:  map[string]Execution{},
		history: map[string][]models.LogEntry{},
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Start begins an execution over the given action block ids and immediately
// emits its pending and executing entries.
func (s *Simulator) Start(strategyID string, actionIDs, labels []string) (Execution, error) {
	if len(actionIDs) == 0 {
		return Execution{}, ErrNoActions
	}

	exec := Execution{
		ID:         s.newID(),
		StrategyID: strategyID,
		ActionIDs:  append([]string(nil), actionIDs...),
		Labels:     append([]string(nil), labels...),
		StartedAt:  s.now().UnixMilli(),
	}

	s.mu.Lock()
	s.active[exec.ID] = exec
	s.mu.Unlock()

	zero := 0.0
	capital := s.capital
	s.emit(strategyID, models.LogEntry{
		ID:         exec.ID,
		Title:      "Pending",
		Message:    fmt.Sprintf("%d action(s) queued", len(actionIDs)),
		Status:     models.LogPending,
		Timestamp:  s.now().UnixMilli(),
		PnL:        &zero,
		Capital:    &capital,
		ROIPercent: &zero,
		Actions:    exec.Labels,
	})
	s.emit(strategyID, models.LogEntry{
		ID:         exec.ID,
		Title:      "Executing",
		Message:    fmt.Sprintf("%d action(s) started", len(actionIDs)),
		Status:     models.LogExecuting,
		Timestamp:  s.now().UnixMilli(),
		PnL:        &zero,
		Capital:    &capital,
		ROIPercent: &zero,
		Actions:    exec.Labels,
	})

	s.logger.Info("execution started",
		zap.String("execution_id", exec.ID),
		zap.String("strategy_id", strategyID),
		zap.Int("actions", len(actionIDs)),
	)
	return exec, nil
}

// Stop ends the execution and emits its terminal entry with the simulated
// PnL. Stopping an unknown or already-stopped execution is an error.
func (s *Simulator) Stop(execID string) (models.LogEntry, error) {
	s.mu.Lock()
	exec, ok := s.active[execID]
	if !ok {
		s.mu.Unlock()
		return models.LogEntry{}, ErrExecutionNotFound
	}
	delete(s.active, execID)
	r := s.rng.Float64()
	s.mu.Unlock()

	capital := decimal.NewFromFloat(s.capital)
	pnl := decimal.NewFromFloat((r - 0.2) * 0.08).Mul(capital).Round(0)
	roi := pnl.Div(capital).Mul(decimal.NewFromInt(100))

	pnlF := pnl.InexactFloat64()
	capF := s.capital
	roiF := roi.InexactFloat64()
	entry := models.LogEntry{
		ID:         execID,
		Title:      "Stopped",
		Message:    fmt.Sprintf("%d action(s) finished", len(exec.ActionIDs)),
		Status:     models.LogSuccess,
		Timestamp:  s.now().UnixMilli(),
		PnL:        &pnlF,
		Capital:    &capF,
		ROIPercent: &roiF,
		Actions:    exec.Labels,
	}
	s.emit(exec.StrategyID, entry)

	s.logger.Info("execution stopped",
		zap.String("execution_id", execID),
		zap.Float64("pnl", pnlF),
	)
	return entry, nil
}

// Active returns the currently running executions.
func (s *Simulator) Active() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Execution, 0, len(s.active))
	for _, e := range s.active {
		out = append(out, e)
	}
	return out
}

// History returns the log entries emitted for one strategy, oldest first.
// Entries sharing an id describe one execution's lifecycle.
func (s *Simulator) History(strategyID string) []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LogEntry(nil), s.history[strategyID]...)
}

func (s *Simulator) emit(strategyID string, entry models.LogEntry) {
	s.mu.Lock()
	h := append(s.history[strategyID], entry)
	if overflow := len(h) - historyLimit; overflow > 0 {
		h = append([]models.LogEntry(nil), h[overflow:]...)
	}
	s.history[strategyID] = h
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Emit(strategyID, entry)
	}
}
