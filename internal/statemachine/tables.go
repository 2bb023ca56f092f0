package statemachine

import "github.com/propline/dealdesk-backend/internal/domain"

// Payment plan states are domain.PlanStatus values; block, reservation and
// contract tables mirror their domain status sets the same way.

// PaymentPlans returns the payment plan approval table. FM approval lands on
// approved here; the plan service overrides the target to pending_tm when the
// discount exceeds the policy limit.
func PaymentPlans() *Machine {
	return New(domain.EntityPaymentPlan,
		Transition{From: State(domain.PlanPendingSM), Action: ActionApprove, Roles: []domain.Role{domain.RoleSalesManager}, To: State(domain.PlanPendingFM)},
		Transition{From: State(domain.PlanPendingSM), Action: ActionReject, Roles: []domain.Role{domain.RoleSalesManager}, To: State(domain.PlanRejected)},
		Transition{From: State(domain.PlanPendingFM), Action: ActionApprove, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.PlanApproved)},
		Transition{From: State(domain.PlanPendingFM), Action: ActionReject, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.PlanRejected)},
		Transition{From: State(domain.PlanPendingTM), Action: ActionApprove, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.PlanApproved)},
		Transition{From: State(domain.PlanPendingTM), Action: ActionReject, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.PlanRejected)},
		Transition{From: State(domain.PlanApproved), Action: ActionMarkAccepted, Roles: []domain.Role{domain.RoleFinancialManager, domain.RoleTopManagement}, To: State(domain.PlanApproved)},
	)
}

// Blocks returns the unit block lifecycle table. Cancelling releases the
// hold: a pending request is withdrawn to rejected, an approved hold expires
// immediately and frees the unit.
func Blocks() *Machine {
	requesters := []domain.Role{
		domain.RolePropertyConsultant,
		domain.RoleFinancialManager,
		domain.RoleFinancialAdmin,
	}
	return New(domain.EntityBlock,
		Transition{From: State(domain.BlockPending), Action: ActionApprove, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.BlockApproved)},
		Transition{From: State(domain.BlockPending), Action: ActionReject, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.BlockRejected)},
		Transition{From: State(domain.BlockPending), Action: ActionCancel, Roles: requesters, To: State(domain.BlockRejected)},
		Transition{From: State(domain.BlockApproved), Action: ActionCancel, Roles: requesters, To: State(domain.BlockExpired)},
		Transition{From: State(domain.BlockApproved), Action: ActionExpire, Roles: []domain.Role{domain.RoleScheduler}, To: State(domain.BlockExpired)},
	)
}

// BlockOverrides returns the override chain walked when the financial
// decision on a block was REJECT: SM, then FM, then TM, with a TM bypass
// from any pending stage. Override approval does not flip the unit; it only
// permits the normal FM approval to proceed.
func BlockOverrides() *Machine {
	return New("block_override",
		Transition{From: State(domain.OverridePendingSM), Action: ActionApprove, Roles: []domain.Role{domain.RoleSalesManager}, To: State(domain.OverridePendingFM)},
		Transition{From: State(domain.OverridePendingFM), Action: ActionApprove, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.OverridePendingTM)},
		Transition{From: State(domain.OverridePendingTM), Action: ActionApprove, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.OverrideApproved)},
		Transition{From: State(domain.OverridePendingSM), Action: ActionTMBypass, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.OverrideApproved)},
		Transition{From: State(domain.OverridePendingFM), Action: ActionTMBypass, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.OverrideApproved)},
		Transition{From: State(domain.OverridePendingSM), Action: ActionReject, Roles: []domain.Role{domain.RoleSalesManager, domain.RoleTopManagement}, To: State(domain.OverrideRejected)},
		Transition{From: State(domain.OverridePendingFM), Action: ActionReject, Roles: []domain.Role{domain.RoleFinancialManager, domain.RoleTopManagement}, To: State(domain.OverrideRejected)},
		Transition{From: State(domain.OverridePendingTM), Action: ActionReject, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.OverrideRejected)},
	)
}

// Reservations returns the reservation form table. The amendment
// sub-protocol mutates an approved form in place and is handled by the
// reservation service, not as a state change.
func Reservations() *Machine {
	return New(domain.EntityReservationForm,
		Transition{From: State(domain.ReservationPendingApproval), Action: ActionApprove, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.ReservationApproved)},
		Transition{From: State(domain.ReservationPendingApproval), Action: ActionReject, Roles: []domain.Role{domain.RoleFinancialManager}, To: State(domain.ReservationRejected)},
		Transition{From: State(domain.ReservationPendingApproval), Action: ActionCancel, Roles: []domain.Role{domain.RoleFinancialAdmin, domain.RoleFinancialManager}, To: State(domain.ReservationCancelled)},
	)
}

// Contracts returns the contract table: draft, CM review, TM review,
// approved, executed, with rejection reachable from both review stages.
func Contracts() *Machine {
	return New(domain.EntityContract,
		Transition{From: State(domain.ContractDraft), Action: ActionSubmit, Roles: []domain.Role{domain.RoleContractAdmin}, To: State(domain.ContractPendingCM)},
		Transition{From: State(domain.ContractPendingCM), Action: ActionApprove, Roles: []domain.Role{domain.RoleContractManager}, To: State(domain.ContractPendingTM)},
		Transition{From: State(domain.ContractPendingCM), Action: ActionReject, Roles: []domain.Role{domain.RoleContractManager}, To: State(domain.ContractRejected)},
		Transition{From: State(domain.ContractPendingTM), Action: ActionApprove, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.ContractApproved)},
		Transition{From: State(domain.ContractPendingTM), Action: ActionReject, Roles: []domain.Role{domain.RoleTopManagement}, To: State(domain.ContractRejected)},
		Transition{From: State(domain.ContractApproved), Action: ActionExecute, Roles: []domain.Role{domain.RoleContractAdmin}, To: State(domain.ContractExecuted)},
	)
}
