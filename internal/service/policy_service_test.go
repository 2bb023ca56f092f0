package service

import (
	"context"
	"errors"
	"testing"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPolicyService(t *testing.T) (*PolicyService, *testutil.MockPolicyRepository) {
	t.Helper()
	repo := testutil.NewMockPolicyRepository()
	return NewPolicyService(repo, zerolog.Nop()), repo
}

func validPolicy() domain.PolicyConfig {
	return domain.PolicyConfig{
		PolicyLimitPercent: decimal.NewFromInt(3),
		PVTolerancePercent: decimal.NewFromInt(95),
		Year1MinPercent:    decimal.NewFromInt(35),
		Year2MinPercent:    decimal.NewFromInt(50),
		Year3MinPercent:    decimal.NewFromInt(65),
		HandoverMinPercent: decimal.NewFromInt(65),
	}
}

func TestPolicyEffective_FallsBackToDefaults(t *testing.T) {
	svc, _ := newPolicyService(t)

	policy, err := svc.Effective(context.Background())
	require.NoError(t, err)
	assert.True(t, policy.PolicyLimitPercent.Equal(domain.DefaultPolicyLimitPercent))
	assert.True(t, policy.PVTolerancePercent.Equal(domain.DefaultPVTolerancePercent))
}

func TestPolicyUpdate_InstallsActiveGlobalRow(t *testing.T) {
	svc, repo := newPolicyService(t)

	created, err := svc.Update(context.Background(), asRole(domain.RoleTopManagement), validPolicy())
	require.NoError(t, err)

	// Scope and activation are forced server-side.
	assert.Equal(t, domain.ScopeGlobal, created.ScopeType)
	assert.True(t, created.Active)
	require.NotNil(t, repo.Policy)

	effective, err := svc.Effective(context.Background())
	require.NoError(t, err)
	assert.True(t, effective.PolicyLimitPercent.Equal(decimal.NewFromInt(3)))
}

func TestPolicyUpdate_RoleGate(t *testing.T) {
	svc, _ := newPolicyService(t)

	_, err := svc.Update(context.Background(), asRole(domain.RoleFinancialManager), validPolicy())
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestPolicyUpdate_Validation(t *testing.T) {
	svc, _ := newPolicyService(t)

	bad := validPolicy()
	bad.Year1MinPercent = decimal.NewFromInt(120)
	bad.PVTolerancePercent = decimal.Zero
	low := decimal.NewFromInt(40)
	bad.Year2MaxPercent = &low // below the 50% minimum

	_, err := svc.Update(context.Background(), asRole(domain.RoleTopManagement), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	fields := make(map[string]bool)
	for _, f := range de.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["year1MinPercent"])
	assert.True(t, fields["pvTolerancePercent"])
	assert.True(t, fields["year2MaxPercent"])
}
