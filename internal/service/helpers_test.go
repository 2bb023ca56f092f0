package service

import (
	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/planner"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testStandard() *planner.StandardPlan {
	return &planner.StandardPlan{
		TotalPrice:        decimal.NewFromInt(1_000_000),
		AnnualRatePercent: decimal.NewFromInt(12),
		StandardPV:        decimal.NewFromInt(1_000_000),
	}
}

func testProposal() planner.Inputs {
	return planner.Inputs{
		DPType:               planner.DPPercentage,
		DownPaymentValue:     decimal.NewFromInt(20),
		PlanDurationYears:    4,
		InstallmentFrequency: "quarterly",
		HandoverYear:         2,
	}
}

// rejectProposal front-loads too little: a 5% down payment with even quarterly
// installments leaves the first-year cumulative below the 35% floor, so the
// evaluator returns REJECT.
func rejectProposal() planner.Inputs {
	return planner.Inputs{
		DPType:               planner.DPPercentage,
		DownPaymentValue:     decimal.NewFromInt(5),
		PlanDurationYears:    4,
		InstallmentFrequency: "quarterly",
		HandoverYear:         2,
	}
}

func asRole(role domain.Role) domain.Principal {
	return domain.Principal{UserID: uuid.New(), Role: role}
}

func newTestNotifier() (*Notifier, *testutil.MockNotificationRepository, *testutil.MockNotificationSink) {
	repo := testutil.NewMockNotificationRepository()
	sink := testutil.NewMockNotificationSink()
	return NewNotifier(repo, sink, zerolog.Nop()), repo, sink
}
