package statemachine

import (
	"errors"
	"testing"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PlanHappyChain(t *testing.T) {
	m := PaymentPlans()

	next, err := m.Resolve(State(domain.PlanPendingSM), ActionApprove, domain.RoleSalesManager)
	require.NoError(t, err)
	assert.Equal(t, State(domain.PlanPendingFM), next)

	next, err = m.Resolve(State(domain.PlanPendingFM), ActionApprove, domain.RoleFinancialManager)
	require.NoError(t, err)
	assert.Equal(t, State(domain.PlanApproved), next)

	next, err = m.Resolve(State(domain.PlanPendingTM), ActionApprove, domain.RoleTopManagement)
	require.NoError(t, err)
	assert.Equal(t, State(domain.PlanApproved), next)
}

func TestResolve_WrongRoleForbidden(t *testing.T) {
	m := PaymentPlans()
	_, err := m.Resolve(State(domain.PlanPendingSM), ActionApprove, domain.RolePropertyConsultant)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestResolve_UnknownActionStateMismatch(t *testing.T) {
	m := PaymentPlans()
	_, err := m.Resolve(State(domain.PlanApproved), ActionApprove, domain.RoleFinancialManager)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStateMismatch))

	_, err = m.Resolve(State(domain.PlanRejected), ActionReject, domain.RoleSalesManager)
	assert.True(t, errors.Is(err, domain.ErrStateMismatch))
}

func TestResolve_AdminPassesRoleGates(t *testing.T) {
	m := Contracts()
	next, err := m.Resolve(State(domain.ContractDraft), ActionSubmit, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, State(domain.ContractPendingCM), next)
}

func TestResolve_MarkAcceptedStaysApproved(t *testing.T) {
	m := PaymentPlans()
	for _, role := range []domain.Role{domain.RoleFinancialManager, domain.RoleTopManagement} {
		next, err := m.Resolve(State(domain.PlanApproved), ActionMarkAccepted, role)
		require.NoError(t, err)
		assert.Equal(t, State(domain.PlanApproved), next)
	}
}

func TestResolve_BlockExpireSchedulerOnly(t *testing.T) {
	m := Blocks()

	next, err := m.Resolve(State(domain.BlockApproved), ActionExpire, domain.RoleScheduler)
	require.NoError(t, err)
	assert.Equal(t, State(domain.BlockExpired), next)

	_, err = m.Resolve(State(domain.BlockApproved), ActionExpire, domain.RoleFinancialManager)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestResolve_OverrideChainWalk(t *testing.T) {
	m := BlockOverrides()

	next, err := m.Resolve(State(domain.OverridePendingSM), ActionApprove, domain.RoleSalesManager)
	require.NoError(t, err)
	assert.Equal(t, State(domain.OverridePendingFM), next)

	next, err = m.Resolve(next, ActionApprove, domain.RoleFinancialManager)
	require.NoError(t, err)
	assert.Equal(t, State(domain.OverridePendingTM), next)

	next, err = m.Resolve(next, ActionApprove, domain.RoleTopManagement)
	require.NoError(t, err)
	assert.Equal(t, State(domain.OverrideApproved), next)
}

func TestResolve_OverrideTMBypass(t *testing.T) {
	m := BlockOverrides()
	for _, from := range []State{State(domain.OverridePendingSM), State(domain.OverridePendingFM)} {
		next, err := m.Resolve(from, ActionTMBypass, domain.RoleTopManagement)
		require.NoError(t, err)
		assert.Equal(t, State(domain.OverrideApproved), next)
	}

	_, err := m.Resolve(State(domain.OverridePendingSM), ActionTMBypass, domain.RoleSalesManager)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestResolve_ContractLifecycle(t *testing.T) {
	m := Contracts()
	steps := []struct {
		from   State
		action Action
		role   domain.Role
		to     State
	}{
		{State(domain.ContractDraft), ActionSubmit, domain.RoleContractAdmin, State(domain.ContractPendingCM)},
		{State(domain.ContractPendingCM), ActionApprove, domain.RoleContractManager, State(domain.ContractPendingTM)},
		{State(domain.ContractPendingTM), ActionApprove, domain.RoleTopManagement, State(domain.ContractApproved)},
		{State(domain.ContractApproved), ActionExecute, domain.RoleContractAdmin, State(domain.ContractExecuted)},
	}
	for _, s := range steps {
		next, err := m.Resolve(s.from, s.action, s.role)
		require.NoError(t, err)
		assert.Equal(t, s.to, next)
	}

	// Rejection is reachable from both review stages but not from draft.
	_, err := m.Resolve(State(domain.ContractDraft), ActionReject, domain.RoleContractManager)
	assert.True(t, errors.Is(err, domain.ErrStateMismatch))
}
