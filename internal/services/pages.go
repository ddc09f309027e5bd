package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrPageNotFound is returned when a page does not exist for the owner
	ErrPageNotFound = errors.New("page not found")
	// ErrInvalidOrder is returned when a reorder does not list exactly the owner's pages
	ErrInvalidOrder = errors.New("order must list every page exactly once")
)

type PageService struct {
	db *gorm.DB
}

func NewPageService(db *gorm.DB) *PageService {
	return &PageService{db: db}
}

// List returns the owner's pages in flipbook order
func (s *PageService) List(ctx context.Context, ownerID string) ([]models.Page, error) {
	var pages []models.Page
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("position ASC").
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// Add appends a page to the end of the owner's flipbook
func (s *PageService) Add(ctx context.Context, ownerID, url, shortDescription string) (*models.Page, error) {
	page := &models.Page{
		OwnerID:          ownerID,
		URL:              url,
		ShortDescription: shortDescription,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, ownerID); err != nil {
			return err
		}
		var maxPosition *int
		if err := tx.Model(&models.Page{}).
			Where("owner_id = ?", ownerID).
			Select("MAX(position)").
			Scan(&maxPosition).Error; err != nil {
			return err
		}
		if maxPosition != nil {
			page.Position = *maxPosition + 1
		}
		return tx.Create(page).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add page: %w", err)
	}
	return page, nil
}

// Reorder rewrites positions so the pages follow ids
func (s *PageService) Reorder(ctx context.Context, ownerID string, ids []uuid.UUID) ([]models.Page, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, ownerID); err != nil {
			return err
		}
		var existing []uuid.UUID
		if err := tx.Model(&models.Page{}).
			Where("owner_id = ?", ownerID).
			Pluck("id", &existing).Error; err != nil {
			return err
		}
		if err := checkOrder(existing, ids); err != nil {
			return err
		}

		// Park every page on a negative position first so the unique index holds between updates.
		if err := tx.Model(&models.Page{}).
			Where("owner_id = ?", ownerID).
			Update("position", gorm.Expr("-position - 1")).Error; err != nil {
			return err
		}
		for position, id := range ids {
			if err := tx.Model(&models.Page{}).
				Where("owner_id = ? AND id = ?", ownerID, id).
				Update("position", position).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrder) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to reorder pages: %w", err)
	}
	return s.List(ctx, ownerID)
}

// Delete removes one page
func (s *PageService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Page{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete page: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPageNotFound
	}
	return nil
}

// DeleteAll removes every page of the owner and returns how many were removed
func (s *PageService) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&models.Page{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete pages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PreviousImages returns the last n pages, oldest first, as continuity references
func (s *PageService) PreviousImages(ctx context.Context, ownerID string, n int) ([]storyboard.PreviousImage, error) {
	if n <= 0 {
		return nil, nil
	}

	var pages []models.Page
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("position DESC").
		Limit(n).
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load previous images: %w", err)
	}
	return previousImages(pages), nil
}

// previousImages converts pages given newest first into references oldest first
func previousImages(pages []models.Page) []storyboard.PreviousImage {
	refs := make([]storyboard.PreviousImage, 0, len(pages))
	for i := len(pages) - 1; i >= 0; i-- {
		refs = append(refs, storyboard.PreviousImage{
			ID:               pages[i].ID.String(),
			URL:              pages[i].URL,
			ShortDescription: pages[i].ShortDescription,
		})
	}
	return refs
}

// lockOwner serializes position writes for one owner until tx ends
func lockOwner(tx *gorm.DB, ownerID string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", ownerID).Error
}

// checkOrder verifies ids is a permutation of existing
func checkOrder(existing, ids []uuid.UUID) error {
	if len(existing) != len(ids) {
		return ErrInvalidOrder
	}
	remaining := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		remaining[id] = true
	}
	for _, id := range ids {
		if !remaining[id] {
			return ErrInvalidOrder
		}
		delete(remaining, id)
	}
	return nil
}
