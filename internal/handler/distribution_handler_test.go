package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitos/vendor-engine/internal/middleware"
	"github.com/recruitos/vendor-engine/internal/models"
	"github.com/recruitos/vendor-engine/internal/service"
	appErrors "github.com/recruitos/vendor-engine/pkg/errors"
)

type distributionServiceMock struct {
	created *models.Distribution
	err     error
}

func (m *distributionServiceMock) Create(ctx context.Context, tenantID string, input service.CreateDistributionInput) (*models.Distribution, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.created, nil
}

func (m *distributionServiceMock) Get(ctx context.Context, tenantID, id string) (*models.Distribution, error) {
	return m.created, m.err
}

func (m *distributionServiceMock) List(ctx context.Context, tenantID string, filter models.DistributionFilter) ([]models.Distribution, error) {
	return nil, m.err
}

func (m *distributionServiceMock) Transition(ctx context.Context, tenantID, id string, next models.DistributionStatus) (*models.Distribution, error) {
	return m.created, m.err
}

func (m *distributionServiceMock) CloseForJob(ctx context.Context, tenantID, jobID string) (int64, error) {
	return 0, m.err
}

type submissionServiceMock struct {
	result *service.SubmissionResult
	err    error
}

func (m *submissionServiceMock) Submit(ctx context.Context, tenantID, agencyID string, input service.SubmitCandidateInput) (*service.SubmissionResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func testClaims() *models.TenantClaims {
	return &models.TenantClaims{TenantID: "t1", UserID: "agency-a"}
}

func TestDistributionHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDistributionHandler(&distributionServiceMock{}, &submissionServiceMock{}, service.NewMetricsService())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/distributions", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextClaimsKey, testClaims())

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDistributionHandlerTransitionRequiresStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDistributionHandler(&distributionServiceMock{}, &submissionServiceMock{}, service.NewMetricsService())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/distributions/dist-1/transition", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "dist-1"}}
	c.Set(middleware.ContextClaimsKey, testClaims())

	handler.Transition(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDistributionHandlerSubmitOwnershipConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDistributionHandler(
		&distributionServiceMock{},
		&submissionServiceMock{err: appErrors.ErrOwnershipConflict},
		service.NewMetricsService(),
	)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.SubmitCandidateInput{Email: "jane@example.com"})
	req, _ := http.NewRequest(http.MethodPost, "/distributions/dist-1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "dist-1"}}
	c.Set(middleware.ContextClaimsKey, testClaims())

	handler.Submit(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrOwnershipConflict.Code, envelope.Error.Code)
}

func TestDistributionHandlerSubmitHeaderOverridesAgency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	submissions := &submissionServiceMock{result: &service.SubmissionResult{CandidateID: "cand-1"}}
	handler := NewDistributionHandler(&distributionServiceMock{}, submissions, service.NewMetricsService())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.SubmitCandidateInput{Email: "jane@example.com"})
	req, _ := http.NewRequest(http.MethodPost, "/distributions/dist-1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agency-ID", "agency-b")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "dist-1"}}
	c.Set(middleware.ContextClaimsKey, testClaims())

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
}
