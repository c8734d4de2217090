package repository

import (
	"context"

	"github.com/craftlab/ai-gateway/internal/models"
	"github.com/craftlab/ai-gateway/internal/storage"
	"gorm.io/gorm"
)

type OrganizationRepository struct {
	db *storage.Postgres
}

func NewOrganizationRepository(db *storage.Postgres) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.DB.WithContext(ctx).Create(org).Error
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&org).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &org, err
}

func (r *OrganizationRepository) List(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&orgs).Error

	return orgs, err
}

func (r *OrganizationRepository) UpdatePlanTier(ctx context.Context, id, tier string) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.Organization{}).
		Where("id = ?", id).
		Update("plan_tier", tier).Error
}
