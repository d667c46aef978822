package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/satriahrh/speakfix/domain"
	"github.com/satriahrh/speakfix/domain/entities"
	"github.com/satriahrh/speakfix/domain/repositories"
)

func TestCorrectionRepository_CreateAndGet(t *testing.T) {
	repo := NewCorrectionRepository()
	ctx := context.Background()

	c := entities.NewCorrection("i has a apple", "I have an apple.", "en")
	c.Edits = []entities.Edit{{Offset: 2, Length: 3, Replacement: "have"}}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Create(ctx, c); err == nil {
		t.Error("Expected error for duplicate ID")
	}

	got, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Corrected != "I have an apple." {
		t.Errorf("Unexpected correction %+v", got)
	}

	got.Edits[0].Replacement = "mutated"
	again, _ := repo.GetByID(ctx, c.ID)
	if again.Edits[0].Replacement != "have" {
		t.Error("Stored correction was mutated through a returned copy")
	}
}

func TestCorrectionRepository_CreateInvalid(t *testing.T) {
	repo := NewCorrectionRepository()

	if err := repo.Create(context.Background(), nil); err == nil {
		t.Error("Expected error for nil correction")
	}
	if err := repo.Create(context.Background(), &entities.Correction{ID: "x"}); err == nil {
		t.Error("Expected validation error")
	}
}

func TestCorrectionRepository_GetMissing(t *testing.T) {
	_, err := NewCorrectionRepository().GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCorrectionRepository_List(t *testing.T) {
	repo := NewCorrectionRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		c := entities.NewCorrection(fmt.Sprintf("text %d", i), "Text.", "en")
		c.ClientID = "a"
		if i%2 == 1 {
			c.ClientID = "b"
		}
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    repositories.ListFilter
		wantCount int
		wantFirst string
	}{
		{"all", repositories.ListFilter{}, 5, "text 4"},
		{"client a", repositories.ListFilter{ClientID: "a"}, 3, "text 4"},
		{"client b", repositories.ListFilter{ClientID: "b"}, 2, "text 3"},
		{"limited", repositories.ListFilter{Limit: 2}, 2, "text 4"},
		{"unknown client", repositories.ListFilter{ClientID: "z"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(list) != tt.wantCount {
				t.Fatalf("Expected %d corrections, got %d", tt.wantCount, len(list))
			}
			if tt.wantCount > 0 && list[0].Original != tt.wantFirst {
				t.Errorf("Expected newest %q first, got %q", tt.wantFirst, list[0].Original)
			}
		})
	}
}

func TestCorrectionRepository_DeleteOlderThan(t *testing.T) {
	repo := NewCorrectionRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, age := range []time.Duration{time.Hour, 48 * time.Hour, 72 * time.Hour} {
		c := entities.NewCorrection("text", "Text.", "en")
		c.CreatedAt = now.Add(-age)
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	remaining, _ := repo.List(ctx, repositories.ListFilter{})
	if len(remaining) != 1 {
		t.Errorf("Expected 1 remaining, got %d", len(remaining))
	}
}

func TestCorrectionRepository_ConcurrentAccess(t *testing.T) {
	repo := NewCorrectionRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			repo.Create(ctx, entities.NewCorrection("text", "Text.", "en"))
		}()
		go func() {
			defer wg.Done()
			repo.List(ctx, repositories.ListFilter{})
		}()
	}
	wg.Wait()

	list, _ := repo.List(ctx, repositories.ListFilter{})
	if len(list) != 20 {
		t.Errorf("Expected 20 corrections, got %d", len(list))
	}
}
