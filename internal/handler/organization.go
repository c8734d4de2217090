package handler

import (
	"net/http"

	"github.com/craftlab/ai-gateway/internal/models"
	"github.com/craftlab/ai-gateway/internal/repository"
	"github.com/craftlab/ai-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

type OrganizationHandler struct {
	repository  *repository.OrganizationRepository
	planService *service.PlanService
}

func NewOrganizationHandler(repo *repository.OrganizationRepository, plans *service.PlanService) *OrganizationHandler {
	return &OrganizationHandler{
		repository:  repo,
		planService: plans,
	}
}

// Handles POST /admin/orgs
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		PlanTier string `json:"plan_tier"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PlanTier == "" {
		req.PlanTier = "free"
	}

	org := &models.Organization{
		Name:     req.Name,
		PlanTier: req.PlanTier,
		IsActive: true,
	}

	ctx := c.Request.Context()
	if err := h.repository.Create(ctx, org); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, org)
}

// Handles GET /admin/orgs
func (h *OrganizationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	orgs, err := h.repository.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// Handles GET /admin/orgs/:id
func (h *OrganizationHandler) Get(c *gin.Context) {
	id := c.Param("id")

	ctx := c.Request.Context()
	org, err := h.repository.FindByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}

	c.JSON(http.StatusOK, org)
}

// Handles PATCH /admin/orgs/:id/plan
func (h *OrganizationHandler) UpdatePlanTier(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		PlanTier string `json:"plan_tier" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.repository.UpdatePlanTier(ctx, id, req.PlanTier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Drop the cached tier so the next admission check sees the change
	h.planService.InvalidateCache(ctx, id)

	c.JSON(http.StatusOK, gin.H{
		"message":   "Plan tier updated",
		"plan_tier": req.PlanTier,
	})
}
