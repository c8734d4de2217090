package service

import (
	"context"
	"time"

	"github.com/craftlab/ai-gateway/internal/repository"
	"github.com/google/uuid"
)

type AnalyticsService struct {
	repository *repository.AdmissionLogRepository
}

func NewAnalyticsService(repo *repository.AdmissionLogRepository) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
	}
}

// Holds analytics summary data
type AnalyticsSummary struct {
	TotalRequests     int64                    `json:"total_requests"`
	Admitted          int64                    `json:"admitted"`
	RateRejections    int64                    `json:"rate_rejections"`
	QuotaRejections   int64                    `json:"quota_rejections"`
	ContextRejections int64                    `json:"context_rejections"`
	RejectionRate     float64                  `json:"rejection_rate"`
	AvgResponseTime   float64                  `json:"avg_response_time_ms"`
	P95ResponseTime   int                      `json:"p95_response_time_ms"`
	P99ResponseTime   int                      `json:"p99_response_time_ms"`
	TopCategories     []map[string]interface{} `json:"top_categories"`
}

// Holds time-series analytics data
type TimeSeriesData struct {
	Hour            time.Time `json:"hour"`
	Count           int64     `json:"count"`
	AvgResponseTime float64   `json:"avg_response_time"`
}

// Retrieves analytics summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{}

	totalRequests, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = totalRequests

	if totalRequests == 0 {
		return summary, nil
	}

	states, err := s.repository.CountByState(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.Admitted = states["admitted"] + states["usage_recorded"]
	summary.RateRejections = states["rejected_rate"]
	summary.QuotaRejections = states["rejected_quota"]
	summary.ContextRejections = states["rejected_context"]

	rejected := summary.RateRejections + summary.QuotaRejections + summary.ContextRejections
	summary.RejectionRate = (float64(rejected) / float64(totalRequests)) * 100

	avgResponseTime, err := s.repository.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgResponseTime = avgResponseTime

	p95, _ := s.repository.GetPercentile(ctx, from, to, 0.95)
	summary.P95ResponseTime = p95

	p99, _ := s.repository.GetPercentile(ctx, from, to, 0.99)
	summary.P99ResponseTime = p99

	topCategories, err := s.repository.GetTopCategories(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopCategories = topCategories

	return summary, nil
}

// Retrieves time-series data
func (s *AnalyticsService) GetTimeSeriesData(ctx context.Context, from, to time.Time) ([]TimeSeriesData, error) {
	hourlyStats, err := s.repository.GetHourlyStats(ctx, from, to)
	if err != nil {
		return nil, err
	}

	timeSeries := make([]TimeSeriesData, 0, len(hourlyStats))
	for _, stat := range hourlyStats {
		timeSeries = append(timeSeries, TimeSeriesData{
			Hour:            stat["hour"].(time.Time),
			Count:           stat["count"].(int64),
			AvgResponseTime: stat["avg_response_time"].(float64),
		})
	}

	return timeSeries, nil
}

// Retrieves admission stats for a specific organization
func (s *AnalyticsService) GetOrganizationStats(ctx context.Context, orgID uuid.UUID, from, to time.Time) (*AnalyticsSummary, error) {
	logs, err := s.repository.FindByOrganization(ctx, orgID, from, to, 10000, 0)
	if err != nil {
		return nil, err
	}

	if len(logs) == 0 {
		return &AnalyticsSummary{}, nil
	}

	summary := &AnalyticsSummary{
		TotalRequests: int64(len(logs)),
	}

	var totalResponseTime int64
	for _, entry := range logs {
		totalResponseTime += int64(entry.ResponseTimeMs)

		switch entry.State {
		case "admitted", "usage_recorded":
			summary.Admitted++
		case "rejected_rate":
			summary.RateRejections++
		case "rejected_quota":
			summary.QuotaRejections++
		case "rejected_context":
			summary.ContextRejections++
		}
	}

	rejected := summary.RateRejections + summary.QuotaRejections + summary.ContextRejections
	summary.RejectionRate = (float64(rejected) / float64(summary.TotalRequests)) * 100
	summary.AvgResponseTime = float64(totalResponseTime) / float64(summary.TotalRequests)

	return summary, nil
}

// Retrieves admission logs with pagination
func (s *AnalyticsService) GetLogs(ctx context.Context, from, to time.Time, limit, offset int) ([]interface{}, error) {
	var logs []interface{}

	logResults, err := s.repository.FindByTimeRange(ctx, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, entry := range logResults {
		logs = append(logs, entry)
	}

	return logs, nil
}

// Deletes logs older than specified retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutOffDate := time.Now().AddDate(0, 0, -retentionDays)
	return s.repository.DeleteOldLogs(ctx, cutOffDate)
}
