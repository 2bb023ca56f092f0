package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/planner"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PlanService owns the payment plan approval workflow: creation with a frozen
// calculator snapshot, the SM/FM/TM review chain with policy escalation, and
// acceptance of one approved plan per deal.
type PlanService struct {
	txm         domain.TxManager
	dealRepo    domain.DealRepository
	planRepo    domain.PaymentPlanRepository
	policyRepo  domain.PolicyRepository
	historyRepo domain.HistoryRepository
	evaluation  *EvaluationService
	notifier    *Notifier
	machine     *statemachine.Machine
	logger      zerolog.Logger
}

// NewPlanService creates a new PlanService.
func NewPlanService(
	txm domain.TxManager,
	dealRepo domain.DealRepository,
	planRepo domain.PaymentPlanRepository,
	policyRepo domain.PolicyRepository,
	historyRepo domain.HistoryRepository,
	evaluation *EvaluationService,
	notifier *Notifier,
	logger zerolog.Logger,
) *PlanService {
	return &PlanService{
		txm:         txm,
		dealRepo:    dealRepo,
		planRepo:    planRepo,
		policyRepo:  policyRepo,
		historyRepo: historyRepo,
		evaluation:  evaluation,
		notifier:    notifier,
		machine:     statemachine.PaymentPlans(),
		logger:      logger.With().Str("component", "plan_service").Logger(),
	}
}

// CreatePlanInput is a new plan proposal for a deal.
type CreatePlanInput struct {
	DealID    uuid.UUID
	Calculate CalculateInput
}

// Create evaluates the proposal, freezes the calculator snapshot and files
// the plan into the review queue matching the creator's role. A REJECT
// verdict does not stop the filing: it marks the deal as needing a top
// management override before any plan of the deal can approve the deal.
func (s *PlanService) Create(ctx context.Context, principal domain.Principal, input CreatePlanInput) (*domain.PaymentPlan, error) {
	status, err := domain.InitialPlanStatus(principal.Role)
	if err != nil {
		return nil, err
	}
	limit, err := domain.DiscountCap(principal.Role)
	if err != nil {
		return nil, err
	}
	if input.Calculate.Proposal.SalesDiscountPercent.GreaterThan(limit) {
		return nil, domain.NewForbidden("Requested discount exceeds your authority")
	}

	if _, err := s.dealRepo.GetByID(ctx, input.DealID); err != nil {
		return nil, err
	}

	result, err := s.evaluation.Calculate(ctx, input.Calculate)
	if err != nil {
		return nil, err
	}

	snapshot, err := domain.NewDetails(domain.DetailsKindCalculator, calculatorSnapshot{
		Proposal: input.Calculate.Proposal,
		Result:   result,
	})
	if err != nil {
		return nil, err
	}

	version, err := s.planRepo.NextVersion(ctx, input.DealID)
	if err != nil {
		return nil, err
	}

	var (
		plan   *domain.PaymentPlan
		staged []*domain.Notification
	)
	err = s.txm.WithTx(ctx, func(tx domain.Tx) error {
		plan, err = s.planRepo.CreateTx(ctx, tx, &domain.PaymentPlan{
			DealID:          input.DealID,
			Details:         snapshot,
			CreatedBy:       principal.UserID,
			Status:          status,
			Version:         version,
			DiscountPercent: input.Calculate.Proposal.SalesDiscountPercent,
		})
		if err != nil {
			return err
		}

		if result.Evaluation.Decision == planner.DecisionReject {
			deal, err := s.dealRepo.GetForUpdateTx(ctx, tx, input.DealID)
			if err != nil {
				return err
			}
			if !deal.NeedsOverride {
				deal.NeedsOverride = true
				if err := s.dealRepo.UpdateTx(ctx, tx, deal); err != nil {
					return err
				}
			}
		}

		entry, err := domain.NewHistoryEntry(domain.EntityPaymentPlan, plan.ID, domain.ChangeCreate, principal.UserID, nil, plan)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToRoles(reviewerRole(status)),
			domain.NotifyPlanSubmitted,
			domain.EntityPaymentPlan,
			plan.ID,
			fmt.Sprintf("Payment plan v%d submitted for review", plan.Version),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)

	s.logger.Info().
		Str("plan_id", plan.ID.String()).
		Str("deal_id", plan.DealID.String()).
		Str("status", string(plan.Status)).
		Msg("Payment plan created")
	return plan, nil
}

// calculatorSnapshot is the frozen evaluation stored on the plan.
type calculatorSnapshot struct {
	Proposal planner.Inputs  `json:"proposal"`
	Result   *planner.Result `json:"result"`
}

// ApproveResult reports an approval outcome. Escalated is set when FM
// approval was diverted to the TM queue by the policy discount limit.
type ApproveResult struct {
	Plan               *domain.PaymentPlan
	Escalated          bool
	PolicyLimitPercent decimal.Decimal
}

// Approve advances the plan one review stage. FM approval of a discount above
// the policy limit escalates to TM instead of landing on approved, and FM
// approval of a plan whose frozen evaluation was REJECT likewise diverts to
// TM, which alone may override the verdict. TM approval of such a plan stamps
// the override on the deal.
func (s *PlanService) Approve(ctx context.Context, principal domain.Principal, planID uuid.UUID) (*ApproveResult, error) {
	result := &ApproveResult{}
	var staged []*domain.Notification
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		plan, err := s.planRepo.GetForUpdateTx(ctx, tx, planID)
		if err != nil {
			return err
		}
		from := plan.Status
		next, err := s.machine.Resolve(statemachine.State(from), statemachine.ActionApprove, principal.Role)
		if err != nil {
			return err
		}
		deal, err := s.dealRepo.GetForUpdateTx(ctx, tx, plan.DealID)
		if err != nil {
			return err
		}

		changeType := changeForApproval(from)
		eventType := domain.NotifyPlanApproved
		recipients := ToUsers(plan.CreatedBy)
		message := fmt.Sprintf("Payment plan v%d approved", plan.Version)

		policy := s.activePolicy(ctx)
		if from == domain.PlanPendingFM && plan.DiscountPercent.GreaterThan(policy.PolicyLimitPercent) {
			// Discount beyond FM authority: divert to TM review
			next = statemachine.State(domain.PlanPendingTM)
			changeType = domain.ChangeEscalate
			eventType = domain.NotifyPlanEscalated
			recipients = ToRoles(domain.RoleTopManagement)
			message = fmt.Sprintf("Payment plan v%d escalated: discount %s%% exceeds policy limit %s%%",
				plan.Version, plan.DiscountPercent.String(), policy.PolicyLimitPercent.String())
			result.Escalated = true
			result.PolicyLimitPercent = policy.PolicyLimitPercent
		} else if from == domain.PlanPendingFM && snapshotDecision(plan) == planner.DecisionReject {
			// Rejected evaluation: only TM may override the verdict
			next = statemachine.State(domain.PlanPendingTM)
			changeType = domain.ChangeEscalate
			eventType = domain.NotifyPlanEscalated
			recipients = ToRoles(domain.RoleTopManagement)
			message = fmt.Sprintf("Payment plan v%d escalated: evaluation was REJECT and needs a top management override", plan.Version)
			result.Escalated = true
			result.PolicyLimitPercent = policy.PolicyLimitPercent
		}

		dealChanged := false
		if from == domain.PlanPendingFM {
			now := time.Now().UTC()
			deal.FMReviewAt = &now
			dealChanged = true
		}
		if domain.PlanStatus(next) == domain.PlanApproved && snapshotDecision(plan) == planner.DecisionReject {
			now := time.Now().UTC()
			deal.NeedsOverride = true
			deal.OverrideApprovedAt = &now
			dealChanged = true
		}
		if dealChanged {
			if err := s.dealRepo.UpdateTx(ctx, tx, deal); err != nil {
				return err
			}
		}

		old := *plan
		plan.Status = domain.PlanStatus(next)
		if err := s.planRepo.UpdateTx(ctx, tx, plan); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityPaymentPlan, plan.ID, changeType, principal.UserID, &old, plan)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}

		staged = []*domain.Notification{Event(recipients, eventType, domain.EntityPaymentPlan, plan.ID, message)}
		if err := s.notifier.StageTx(ctx, tx, staged); err != nil {
			return err
		}
		result.Plan = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return result, nil
}

// Reject terminates the plan at its current review stage.
func (s *PlanService) Reject(ctx context.Context, principal domain.Principal, planID uuid.UUID, reason string) (*domain.PaymentPlan, error) {
	var (
		plan   *domain.PaymentPlan
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		plan, err = s.planRepo.GetForUpdateTx(ctx, tx, planID)
		if err != nil {
			return err
		}
		next, err := s.machine.Resolve(statemachine.State(plan.Status), statemachine.ActionReject, principal.Role)
		if err != nil {
			return err
		}
		old := *plan
		plan.Status = domain.PlanStatus(next)
		if err := s.planRepo.UpdateTx(ctx, tx, plan); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityPaymentPlan, plan.ID, domain.ChangeReject, principal.UserID, &old, plan)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		message := fmt.Sprintf("Payment plan v%d rejected", plan.Version)
		if reason != "" {
			message = fmt.Sprintf("%s: %s", message, reason)
		}
		staged = []*domain.Notification{Event(ToUsers(plan.CreatedBy), domain.NotifyPlanRejected, domain.EntityPaymentPlan, plan.ID, message)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return plan, nil
}

// MarkAccepted flags one approved plan as the customer-accepted plan of its
// deal, clearing the flag from every sibling, and approves the deal. The deal
// only approves when the frozen evaluation was ACCEPT or top management has
// stamped an override on the deal.
func (s *PlanService) MarkAccepted(ctx context.Context, principal domain.Principal, planID uuid.UUID) (*domain.PaymentPlan, error) {
	var (
		plan   *domain.PaymentPlan
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		plan, err = s.planRepo.GetForUpdateTx(ctx, tx, planID)
		if err != nil {
			return err
		}
		if _, err := s.machine.Resolve(statemachine.State(plan.Status), statemachine.ActionMarkAccepted, principal.Role); err != nil {
			return err
		}

		deal, err := s.dealRepo.GetForUpdateTx(ctx, tx, plan.DealID)
		if err != nil {
			return err
		}
		if snapshotDecision(plan) == planner.DecisionReject && !(deal.NeedsOverride && deal.OverrideApprovedAt != nil) {
			return domain.NewInvariantViolation("Deal approval requires a top management override of the rejected evaluation")
		}

		old := *plan
		if err := s.planRepo.SetAcceptedTx(ctx, tx, plan.DealID, plan.ID); err != nil {
			return err
		}
		plan.Accepted = true

		if deal.Status != domain.DealApproved {
			deal.Status = domain.DealApproved
			deal.Details = plan.Details
			if err := s.dealRepo.UpdateTx(ctx, tx, deal); err != nil {
				return err
			}
		}

		entry, err := domain.NewHistoryEntry(domain.EntityPaymentPlan, plan.ID, domain.ChangeMarkAccepted, principal.UserID, &old, plan)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToUsers(plan.CreatedBy),
			domain.NotifyPlanAccepted,
			domain.EntityPaymentPlan,
			plan.ID,
			fmt.Sprintf("Payment plan v%d marked as accepted", plan.Version),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return plan, nil
}

// GetByID returns one plan.
func (s *PlanService) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentPlan, error) {
	return s.planRepo.GetByID(ctx, id)
}

// ListByDeal returns every plan version of a deal.
func (s *PlanService) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.PaymentPlan, error) {
	return s.planRepo.ListByDeal(ctx, dealID)
}

// Queue returns the review queue for the caller's role.
func (s *PlanService) Queue(ctx context.Context, principal domain.Principal) ([]*domain.PaymentPlan, error) {
	var status domain.PlanStatus
	switch principal.Role {
	case domain.RoleSalesManager:
		status = domain.PlanPendingSM
	case domain.RoleFinancialManager, domain.RoleFinancialAdmin, domain.RoleAdmin:
		status = domain.PlanPendingFM
	case domain.RoleTopManagement:
		status = domain.PlanPendingTM
	default:
		return nil, domain.NewForbidden("Role has no payment plan review queue")
	}
	return s.planRepo.ListByStatus(ctx, status)
}

// History returns the audit trail of a plan.
func (s *PlanService) History(ctx context.Context, planID uuid.UUID) ([]*domain.HistoryEntry, error) {
	return s.historyRepo.ListByEntity(ctx, domain.EntityPaymentPlan, planID)
}

func (s *PlanService) activePolicy(ctx context.Context) *domain.PolicyConfig {
	policy, err := s.policyRepo.GetActiveGlobal(ctx)
	if err != nil {
		return domain.DefaultPolicy()
	}
	return policy
}

// snapshotDecision returns the frozen evaluator verdict of a plan. Plans
// without a decodable calculator snapshot carry no verdict.
func snapshotDecision(plan *domain.PaymentPlan) string {
	var snapshot calculatorSnapshot
	if err := plan.Details.Decode(domain.DetailsKindCalculator, &snapshot); err != nil {
		return ""
	}
	if snapshot.Result == nil {
		return ""
	}
	return snapshot.Result.Evaluation.Decision
}

func reviewerRole(status domain.PlanStatus) domain.Role {
	if status == domain.PlanPendingSM {
		return domain.RoleSalesManager
	}
	return domain.RoleFinancialManager
}

func changeForApproval(from domain.PlanStatus) string {
	switch from {
	case domain.PlanPendingSM:
		return domain.ChangeApproveSM
	case domain.PlanPendingFM:
		return domain.ChangeApproveFM
	case domain.PlanPendingTM:
		return domain.ChangeApproveTM
	}
	return domain.ChangeApprove
}
