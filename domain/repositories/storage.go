package repositories

import (
	"context"
	"io"
	"time"

	"github.com/satriahrh/speakfix/domain/entities"
)

// ListFilter narrows correction history queries
type ListFilter struct {
	ClientID string
	Limit    int
}

// Limits applied to history queries
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// NormalizedLimit clamps the requested limit into [1, MaxListLimit]
func (f ListFilter) NormalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// CorrectionRepository defines data access methods for corrections
type CorrectionRepository interface {
	Create(ctx context.Context, correction *entities.Correction) error
	GetByID(ctx context.Context, id string) (*entities.Correction, error)
	List(ctx context.Context, filter ListFilter) ([]*entities.Correction, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AudioStore archives synthesized audio and returns a URL to fetch it
type AudioStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
