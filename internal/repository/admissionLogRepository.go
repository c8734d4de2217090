package repository

import (
	"context"
	"time"

	"github.com/craftlab/ai-gateway/internal/models"
	"github.com/craftlab/ai-gateway/internal/storage"
	"github.com/google/uuid"
)

type AdmissionLogRepository struct {
	db *storage.Postgres
}

func NewAdmissionLogRepository(db *storage.Postgres) *AdmissionLogRepository {
	return &AdmissionLogRepository{db: db}
}

// Inserts multiple admission logs (for batch insertion)
func (r *AdmissionLogRepository) CreateBatch(ctx context.Context, logs []models.AdmissionLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&logs).Error
}

// Retrieves logs within a time range
func (r *AdmissionLogRepository) FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.AdmissionLog, error) {
	var logs []models.AdmissionLog

	err := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}

// Retrieves logs for one organization
func (r *AdmissionLogRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID, from, to time.Time, limit, offset int) ([]models.AdmissionLog, error) {
	var logs []models.AdmissionLog
	err := r.db.DB.WithContext(ctx).
		Where("organization_id = ? AND timestamp BETWEEN ? AND ?", orgID, from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}

// Counts logs in a time range
func (r *AdmissionLogRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.AdmissionLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Count(&count).Error

	return count, err
}

// Counts logs per admission state (admitted, rejected_rate, ...)
func (r *AdmissionLogRepository) CountByState(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.AdmissionLog{}).
		Select("state, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("state").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var state string
		var count int64

		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}

		counts[state] = count
	}

	return counts, nil
}

// Calculates average response time
func (r *AdmissionLogRepository) GetAverageResponseTime(ctx context.Context, from, to time.Time) (float64, error) {
	var avg float64

	err := r.db.DB.WithContext(ctx).
		Model(&models.AdmissionLog{}).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Select("AVG(response_time_ms)").
		Scan(&avg).Error

	return avg, err
}

// Calculates response time percentile
func (r *AdmissionLogRepository) GetPercentile(ctx context.Context, from, to time.Time, percentile float64) (int, error) {
	var result int
	query := `
		SELECT PERCENTILE_CONT(?) WITHIN GROUP (ORDER BY response_time_ms)
		FROM admission_logs
		WHERE timestamp BETWEEN ? AND ?
	`

	err := r.db.DB.WithContext(ctx).Raw(query, percentile, from, to).Scan(&result).Error
	return result, err
}

// Returns the most exercised endpoint categories
func (r *AdmissionLogRepository) GetTopCategories(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.AdmissionLog{}).
		Select("category, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("category").
		Order("count DESC").
		Limit(limit).
		Rows()

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64

		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}

		results = append(results, map[string]interface{}{
			"category": category,
			"count":    count,
		})
	}

	return results, nil
}

// Returns the request count grouped by hour
func (r *AdmissionLogRepository) GetHourlyStats(ctx context.Context, from, to time.Time) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.AdmissionLog{}).
		Select("DATE_TRUNC('hour', timestamp) as hour, COUNT(*) as count, AVG(response_time_ms) as avg_response_time").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("hour").
		Order("hour ASC").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hour time.Time
		var count int64
		var avgResponseTime float64
		if err := rows.Scan(&hour, &count, &avgResponseTime); err != nil {
			return nil, err
		}
		results = append(results, map[string]interface{}{
			"hour":              hour,
			"count":             count,
			"avg_response_time": avgResponseTime,
		})
	}

	return results, nil
}

// Deletes logs older than the specified time
func (r *AdmissionLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.AdmissionLog{})

	return result.RowsAffected, result.Error
}
