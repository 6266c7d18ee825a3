package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/graph"
	"github.com/XXUCHAN/gapboard/internal/price"
)

// ErrStrategyNotFound means the strategy id does not name a live session.
var ErrStrategyNotFound = errors.New("strategy not found")

// Manager owns every live editing session, keyed by strategy id.
type Manager struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	prices     price.Source
	logger     *zap.Logger
}

func NewManager(prices price.Source, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		strategies: map[string]*Strategy{},
		prices:     prices,
		logger:     logger,
	}
}

// Create opens a new empty strategy session.
func (m *Manager) Create(name string) *Strategy {
	store := graph.NewStore()
	now := time.Now()
	s := &Strategy{
		ID:        uuid.NewString(),
		Name:      name,
		Store:     store,
		Engine:    graph.NewEngine(store, m.prices, m.logger),
		CreatedAt: now,
		updatedAt: now,
		selected:  map[string]bool{},
	}
	m.mu.Lock()
	m.strategies[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("strategy created", zap.String("strategy_id", s.ID), zap.String("name", name))
	return s
}

// Get returns the live session for the id.
func (m *Manager) Get(id string) (*Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[id]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return s, nil
}

// List returns sessions ordered by creation time.
func (m *Manager) List() []*Strategy {
	m.mu.RLock()
	out := make([]*Strategy, 0, len(m.strategies))
	for _, s := range m.strategies {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Delete drops the session and everything in it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strategies[id]; !ok {
		return ErrStrategyNotFound
	}
	delete(m.strategies, id)
	m.logger.Info("strategy deleted", zap.String("strategy_id", id))
	return nil
}

// Rename changes the session's display name.
func (m *Manager) Rename(id, name string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Name = name
	s.updatedAt = time.Now()
	s.mu.Unlock()
	return nil
}
