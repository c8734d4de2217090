package service

import (
	"context"
	"fmt"
	"time"

	"github.com/craftlab/ai-gateway/internal/repository"
	"github.com/craftlab/ai-gateway/internal/storage"
)

// PlanService resolves an organization's subscription tier for the
// quota gate, with a short Redis cache so the billing table is not hit
// on every generation request. It implements quota.PlanResolver.
type PlanService struct {
	orgs  *repository.OrganizationRepository
	redis *storage.RedisClient
}

func NewPlanService(orgs *repository.OrganizationRepository, redis *storage.RedisClient) *PlanService {
	return &PlanService{
		orgs:  orgs,
		redis: redis,
	}
}

// PlanTier returns the tier for an organization. An unknown or inactive
// organization resolves to the empty string, which the quota gate maps
// to the free tier. Errors propagate so the gate can fail open.
func (s *PlanService) PlanTier(ctx context.Context, orgID string) (string, error) {
	cacheKey := fmt.Sprintf("plan:cache:%s", orgID)
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey)
		if err == nil && cached != "" {
			return cached, nil
		}
	}

	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	if org == nil || !org.IsActive {
		return "", nil
	}

	if s.redis != nil {
		s.redis.Set(ctx, cacheKey, org.PlanTier, 5*time.Minute)
	}

	return org.PlanTier, nil
}

// InvalidateCache drops the cached tier after a plan change.
func (s *PlanService) InvalidateCache(ctx context.Context, orgID string) {
	if s.redis == nil {
		return
	}

	s.redis.Del(ctx, fmt.Sprintf("plan:cache:%s", orgID))
}
