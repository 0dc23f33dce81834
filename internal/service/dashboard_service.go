package service

import (
	"context"
	"time"

	"go-material-store/internal/repository"
)

// LowStockThreshold marks products that need restocking on the dashboard.
const LowStockThreshold = 10

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error)
}

type dashboardService struct {
	reports repository.ReportRepository
	now     func() time.Time
}

func NewDashboardService(reports repository.ReportRepository) DashboardService {
	return &dashboardService{reports: reports, now: time.Now}
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 {
		days = 7
	}
	endDate := s.now()
	startDate := endDate.AddDate(0, 0, -days)

	data, err := s.reports.GetStockMovement(ctx, startDate, endDate)
	if err != nil {
		return nil, internal(err, "aggregate stock movement")
	}
	return data, nil
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	stats, err := s.reports.GetDashboardStats(ctx, LowStockThreshold)
	if err != nil {
		return nil, internal(err, "dashboard stats")
	}
	return stats, nil
}
