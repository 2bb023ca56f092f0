package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPolicyHandler(t *testing.T) (*PolicyHandler, *testutil.MockPolicyRepository) {
	t.Helper()
	repo := testutil.NewMockPolicyRepository()
	return NewPolicyHandler(service.NewPolicyService(repo, zerolog.Nop())), repo
}

const updatePolicyBody = `{
	"policyLimitPercent": "3",
	"pvTolerancePercent": "95",
	"year1MinPercent": "35",
	"year2MinPercent": "50",
	"year3MinPercent": "65",
	"handoverMinPercent": "65"
}`

func TestGetPolicy_Defaults(t *testing.T) {
	h, _ := newPolicyHandler(t)

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/policy", "")

	require.NoError(t, h.GetPolicy(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data *domain.PolicyConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	assert.True(t, envelope.Data.PolicyLimitPercent.Equal(domain.DefaultPolicyLimitPercent))
}

func TestUpdatePolicy_TMReplacesPolicy(t *testing.T) {
	h, repo := newPolicyHandler(t)

	c, rec := jsonRequest(t, http.MethodPut, "/api/v1/policy", updatePolicyBody)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleTopManagement})

	require.NoError(t, h.UpdatePolicy(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.Policy)

	var envelope struct {
		Data *domain.PolicyConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, domain.ScopeGlobal, envelope.Data.ScopeType)
	assert.True(t, envelope.Data.Active)
}

func TestUpdatePolicy_WrongRole(t *testing.T) {
	h, repo := newPolicyHandler(t)

	c, rec := jsonRequest(t, http.MethodPut, "/api/v1/policy", updatePolicyBody)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleFinancialManager})

	require.NoError(t, h.UpdatePolicy(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, repo.Policy)
}

func TestUpdatePolicy_ValidationDetails(t *testing.T) {
	h, _ := newPolicyHandler(t)

	body := `{
		"policyLimitPercent": "3",
		"pvTolerancePercent": "0",
		"year1MinPercent": "120",
		"year2MinPercent": "50",
		"year3MinPercent": "65",
		"handoverMinPercent": "65"
	}`
	c, rec := jsonRequest(t, http.MethodPut, "/api/v1/policy", body)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleTopManagement})

	require.NoError(t, h.UpdatePolicy(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	envelope := decodeError(t, rec)
	fields := make(map[string]bool)
	for _, d := range envelope.Error.Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["year1MinPercent"])
	assert.True(t, fields["pvTolerancePercent"])
}
