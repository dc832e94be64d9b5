package ledger

import (
	"context"
	"sort"
	"sync"

	"disbursex/pkg/contracts/domain"
)

// Store persists extracted rows outside the ledger workbook.
type Store interface {
	SaveRows(ctx context.Context, batchID string, rows []domain.ExtractedRow) error
	TotalsByModel(ctx context.Context) ([]ModelTotal, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore keeps rows in process. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string][]domain.ExtractedRow
	order   []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string][]domain.ExtractedRow)}
}

func (s *MemoryStore) SaveRows(ctx context.Context, batchID string, rows []domain.ExtractedRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; !ok {
		s.order = append(s.order, batchID)
	}
	s.batches[batchID] = append(s.batches[batchID], rows...)
	return nil
}

func (s *MemoryStore) TotalsByModel(ctx context.Context) ([]ModelTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]int)
	for _, id := range s.order {
		for _, r := range s.batches[id] {
			sums[r.Model] += r.QuantityTotal
		}
	}

	out := make([]ModelTotal, 0, len(sums))
	for m, total := range sums {
		out = append(out, ModelTotal{Model: m, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

// Batch returns the rows saved under batchID.
func (s *MemoryStore) Batch(batchID string) []domain.ExtractedRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ExtractedRow(nil), s.batches[batchID]...)
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }
