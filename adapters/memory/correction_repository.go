package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
)

// CorrectionRepository is an in-memory implementation of CorrectionRepository.
// History is lost on restart.
type CorrectionRepository struct {
	mu          sync.RWMutex
	corrections map[string]*entities.Correction
}

var _ repositories.CorrectionRepository = (*CorrectionRepository)(nil)

// NewCorrectionRepository creates a new in-memory correction repository
func NewCorrectionRepository() *CorrectionRepository {
	return &CorrectionRepository{
		corrections: make(map[string]*entities.Correction),
	}
}

// Create implements repositories.CorrectionRepository
func (m *CorrectionRepository) Create(ctx context.Context, correction *entities.Correction) error {
	if correction == nil {
		return errors.New("correction cannot be nil")
	}
	if err := correction.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.corrections[correction.ID]; exists {
		return fmt.Errorf("correction %s already exists", correction.ID)
	}
	m.corrections[correction.ID] = clone(correction)
	return nil
}

// GetByID implements repositories.CorrectionRepository
func (m *CorrectionRepository) GetByID(ctx context.Context, id string) (*entities.Correction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	correction, exists := m.corrections[id]
	if !exists {
		return nil, fmt.Errorf("correction %s: %w", id, domain.ErrNotFound)
	}
	return clone(correction), nil
}

// List implements repositories.CorrectionRepository. Newest first.
func (m *CorrectionRepository) List(ctx context.Context, filter repositories.ListFilter) ([]*entities.Correction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Correction, 0, len(m.corrections))
	for _, c := range m.corrections {
		if filter.ClientID != "" && c.ClientID != filter.ClientID {
			continue
		}
		result = append(result, clone(c))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit := filter.NormalizedLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteOlderThan implements repositories.CorrectionRepository
func (m *CorrectionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, c := range m.corrections {
		if c.CreatedAt.Before(cutoff) {
			delete(m.corrections, id)
			deleted++
		}
	}
	return deleted, nil
}

func clone(c *entities.Correction) *entities.Correction {
	cp := *c
	cp.Edits = append([]entities.Edit(nil), c.Edits...)
	return &cp
}
