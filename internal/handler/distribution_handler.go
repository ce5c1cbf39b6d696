package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/service"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
	"github.com/recruitos/vendor-engine/pkg/response"
)

type distributionService interface {
	Create(ctx context.Context, tenantID string, input service.CreateDistributionInput) (*models.Distribution, error)
	Get(ctx context.Context, tenantID, id string) (*models.Distribution, error)
	List(ctx context.Context, tenantID string, filter models.DistributionFilter) ([]models.Distribution, error)
	Transition(ctx context.Context, tenantID, id string, next models.DistributionStatus) (*models.Distribution, error)
	CloseForJob(ctx context.Context, tenantID, jobID string) (int64, error)
}

type submissionService interface {
	Submit(ctx context.Context, tenantID, agencyID string, input service.SubmitCandidateInput) (*service.SubmissionResult, error)
}

// DistributionHandler exposes the distribution lifecycle and candidate
// submissions.
type DistributionHandler struct {
	distributions distributionService
	submissions   submissionService
	metrics       *service.MetricsService
}

// NewDistributionHandler builds a new handler.
func NewDistributionHandler(distributions distributionService, submissions submissionService, metrics *service.MetricsService) *DistributionHandler {
	return &DistributionHandler{distributions: distributions, submissions: submissions, metrics: metrics}
}

// Create godoc
// @Summary Open a distribution for a job and agency
// @Tags Distributions
// @Accept json
// @Produce json
// @Param payload body service.CreateDistributionInput true "Distribution"
// @Success 201 {object} response.Envelope
// @Router /distributions [post]
func (h *DistributionHandler) Create(c *gin.Context) {
	var input service.CreateDistributionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid distribution payload"))
		return
	}
	dist, err := h.distributions.Create(c.Request.Context(), tenantFromContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dist)
}

// Get godoc
// @Summary Get a distribution
// @Tags Distributions
// @Produce json
// @Param id path string true "Distribution ID"
// @Success 200 {object} response.Envelope
// @Router /distributions/{id} [get]
func (h *DistributionHandler) Get(c *gin.Context) {
	dist, err := h.distributions.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dist, nil)
}

// List godoc
// @Summary List distributions
// @Tags Distributions
// @Produce json
// @Param job_id query string false "Job filter"
// @Param agency_id query string false "Agency filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /distributions [get]
func (h *DistributionHandler) List(c *gin.Context) {
	filter := models.DistributionFilter{
		JobID:    c.Query("job_id"),
		AgencyID: c.Query("agency_id"),
		Status:   models.DistributionStatus(c.Query("status")),
	}
	dists, err := h.distributions.List(c.Request.Context(), tenantFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dists, nil)
}

type transitionRequest struct {
	Status models.DistributionStatus `json:"status" binding:"required"`
}

// Transition godoc
// @Summary Move a distribution through its state machine
// @Tags Distributions
// @Accept json
// @Produce json
// @Param id path string true "Distribution ID"
// @Param payload body transitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /distributions/{id}/transition [post]
func (h *DistributionHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "target status is required"))
		return
	}
	dist, err := h.distributions.Transition(c.Request.Context(), tenantFromContext(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dist, nil)
}

// Submit godoc
// @Summary Submit a candidate under a distribution
// @Tags Distributions
// @Accept json
// @Produce json
// @Param id path string true "Distribution ID"
// @Param payload body service.SubmitCandidateInput true "Candidate identity"
// @Success 201 {object} response.Envelope
// @Router /distributions/{id}/submissions [post]
func (h *DistributionHandler) Submit(c *gin.Context) {
	var input service.SubmitCandidateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	input.DistributionID = c.Param("id")

	claims := claimsFromContext(c)
	agencyID := claims.UserID
	if raw := c.GetHeader("X-Agency-ID"); raw != "" {
		agencyID = raw
	}

	result, err := h.submissions.Submit(c.Request.Context(), claims.TenantID, agencyID, input)
	if err != nil {
		if errors.Is(err, appErrors.ErrOwnershipConflict) {
			h.metrics.IncOwnershipConflict()
		}
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CloseJob godoc
// @Summary Complete all live distributions of a closed job
// @Tags Distributions
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{jobId}/close [post]
func (h *DistributionHandler) CloseJob(c *gin.Context) {
	closed, err := h.distributions.CloseForJob(c.Request.Context(), tenantFromContext(c), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"closed": closed}, nil)
}
