package services

import (
	"context"
	"fmt"

	"github.com/Conceptual-Machines/flipbook-api/internal/models"
	"gorm.io/gorm"
)

const maxHistoryPageSize = 100

type GenerationLogService struct {
	db *gorm.DB
}

func NewGenerationLogService(db *gorm.DB) *GenerationLogService {
	return &GenerationLogService{db: db}
}

// Log stores one generation record
func (s *GenerationLogService) Log(ctx context.Context, entry *models.GenerationLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log generation: %w", err)
	}
	return nil
}

// Recent returns the owner's most recent generations, newest first
func (s *GenerationLogService) Recent(ctx context.Context, ownerID string, limit int) ([]models.GenerationLog, error) {
	if limit <= 0 || limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}

	var logs []models.GenerationLog
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load generation history: %w", err)
	}
	return logs, nil
}
