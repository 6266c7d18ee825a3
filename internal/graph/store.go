package graph

import (
	"sync"

	"github.com/XXUCHAN/gapboard/internal/models"
)

// Blocks is one strategy's insertion-ordered block sequence. Order carries
// display order only; membership and relationships go by id. Mutations never
// edit a sequence in place: they return a fresh sequence with fresh copies of
// every changed block.
type Blocks []models.Block

// Find returns the block with the given id.
func (bs Blocks) Find(id string) (models.Block, bool) {
	for _, b := range bs {
		if b.BlockID() == id {
			return b, true
		}
	}
	return nil, false
}

// Gap returns the gap formula with the given id.
func (bs Blocks) Gap(id string) (models.GapFormula, bool) {
	b, ok := bs.Find(id)
	if !ok {
		return models.GapFormula{}, false
	}
	g, ok := b.(models.GapFormula)
	return g, ok
}

// Group returns the condition group with the given id.
func (bs Blocks) Group(id string) (models.ConditionGroup, bool) {
	b, ok := bs.Find(id)
	if !ok {
		return models.ConditionGroup{}, false
	}
	g, ok := b.(models.ConditionGroup)
	return g, ok
}

// replace swaps the block with id for nb, keeping position in the sequence.
func (bs Blocks) replace(id string, nb models.Block) Blocks {
	out := make(Blocks, len(bs))
	copy(out, bs)
	for i, b := range out {
		if b.BlockID() == id {
			out[i] = nb
			break
		}
	}
	return out
}

// filter keeps the blocks for which keep returns true.
func (bs Blocks) filter(keep func(models.Block) bool) Blocks {
	out := make(Blocks, 0, len(bs))
	for _, b := range bs {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// Mutation is a pure structural update over one snapshot.
type Mutation func(Blocks) (Blocks, error)

// Store is the single owner of one strategy's blocks. Readers get snapshots;
// writers submit mutations that are applied atomically against the current
// snapshot, so no intermediate state is ever observable.
type Store struct {
	mu     sync.Mutex
	blocks Blocks
}

func NewStore() *Store {
	return &Store{blocks: Blocks{}}
}

// Snapshot returns the current sequence. The returned slice must be treated
// as read-only; mutations always build fresh copies.
func (s *Store) Snapshot() Blocks {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Blocks, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Apply runs the mutation against the latest snapshot and installs its
// result. On error nothing changes.
func (s *Store) Apply(m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := m(s.blocks)
	if err != nil {
		return err
	}
	s.blocks = next
	return nil
}
