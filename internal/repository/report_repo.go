package repository

import (
	"context"
	"time"

	"go-material-store/internal/model"

	"gorm.io/gorm"
)

type ReportRepository interface {
	GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error)
	GetDashboardStats(ctx context.Context, lowStock int) (*DashboardStats, error)
}

// StockMovementData untuk chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// DashboardStats untuk overview stats
type DashboardStats struct {
	TotalProducts   int64                       `json:"total_products"`
	LowStockCount   int64                       `json:"low_stock_count"`
	TotalValuation  int64                       `json:"total_valuation"`
	OrdersByStatus  map[model.OrderStatus]int64 `json:"orders_by_status"`
	PaidRevenue     int64                       `json:"paid_revenue"`
	OpenPayments    int64                       `json:"open_payments"`
	ChallengedCount int64                       `json:"challenged_payments"`
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

func (r *reportRepo) GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error) {
	results := []StockMovementData{}

	// aggregate movements per day
	rows, err := r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Select(`
			DATE(created_at) as date,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) as outbound
		`, model.MovementIn, model.MovementOut).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		results = append(results, data)
	}
	return results, rows.Err()
}

func (r *reportRepo) GetDashboardStats(ctx context.Context, lowStock int) (*DashboardStats, error) {
	stats := DashboardStats{OrdersByStatus: map[model.OrderStatus]int64{}}
	db := r.db.WithContext(ctx)

	// 1. Catalog
	if err := db.Model(&model.Product{}).Where("is_active = ?", true).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).Where("is_active = ? AND stock < ?", true, lowStock).
		Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Product{}).Where("is_active = ?", true).
		Select("COALESCE(SUM(stock * price), 0)").Scan(&stats.TotalValuation).Error; err != nil {
		return nil, err
	}

	// 2. Orders per status
	var byStatus []struct {
		Status model.OrderStatus
		Count  int64
	}
	if err := db.Model(&model.Order{}).Select("status, COUNT(*) as count").Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.OrdersByStatus[row.Status] = row.Count
	}

	// 3. Payments
	if err := db.Model(&model.Payment{}).Where("status = ?", model.PaymentSuccess).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.PaidRevenue).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Payment{}).Where("status = ?", model.PaymentPending).
		Count(&stats.OpenPayments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Payment{}).Where("status = ?", model.PaymentChallenge).
		Count(&stats.ChallengedCount).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}
