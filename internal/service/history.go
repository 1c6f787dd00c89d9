package service

import (
	"context"
	"fmt"
	"slices"

	"controlling_tanks/internal/models"
	"controlling_tanks/internal/repository"
	"controlling_tanks/internal/waterlevel"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 5000
)

// LevelHistoryService serves the readings the supervisor stored in SQLite.
type LevelHistoryService struct {
	repo  repository.ReadingRepo
	tanks func() []string
}

// NewLevelHistoryService limits queries to the ids tanks returns.
func NewLevelHistoryService(repo repository.ReadingRepo, tanks func() []string) *LevelHistoryService {
	return &LevelHistoryService{repo: repo, tanks: tanks}
}

// History returns up to limit stored readings of a tank, newest first.
func (s *LevelHistoryService) History(ctx context.Context, tankID string, limit int) ([]models.WaterLevelReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.tanks != nil && !slices.Contains(s.tanks(), tankID) {
		return nil, fmt.Errorf("%w: %s", waterlevel.ErrTankNotFound, tankID)
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	out, err := s.repo.Recent(ctx, tankID, limit)
	if err != nil {
		return nil, fmt.Errorf("load level history: %w", err)
	}
	if out == nil {
		out = []models.WaterLevelReading{}
	}
	return out, nil
}
