package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/auction-service/internal/domain"
	"github.com/spec-kit/auction-service/internal/repository"
)

// StatisticsService reports per-user marketplace activity.
type StatisticsService struct {
	stats repository.StatisticsRepository
}

// NewStatisticsService constructs the service.
func NewStatisticsService(stats repository.StatisticsRepository) *StatisticsService {
	return &StatisticsService{stats: stats}
}

// UserStatistics returns earnings and bidding counters for userID.
func (s *StatisticsService) UserStatistics(ctx context.Context, userID string) (*domain.UserStatistics, error) {
	stats, err := s.stats.ForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user statistics: %w", err)
	}
	return stats, nil
}
