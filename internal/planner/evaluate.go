package planner

import (
	"math"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// monthlyRate converts an annual percentage rate to the equivalent monthly
// compounding rate: (1 + annual/100)^(1/12) - 1.
func monthlyRate(annualPercent decimal.Decimal) float64 {
	annual := annualPercent.InexactFloat64()
	return math.Pow(1+annual/100, 1.0/12) - 1
}

func discountFactor(r float64, monthOffset int) float64 {
	return 1 / math.Pow(1+r, float64(monthOffset))
}

// presentValue discounts every entry except the maintenance deposit. The
// accumulator is double precision; callers compare with Epsilon.
func presentValue(entries []Entry, r float64) float64 {
	var pv float64
	for _, e := range entries {
		if e.Type == EntryMaintenanceDeposit {
			continue
		}
		pv += e.Amount.InexactFloat64() * discountFactor(r, e.MonthOffset)
	}
	return pv
}

// cumulativeBy sums the non-maintenance amounts due by the end of the month.
func cumulativeBy(entries []Entry, month int) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.Type == EntryMaintenanceDeposit || e.MonthOffset > month {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum
}

// standardInputs derives the standard schedule for the pricing row: the
// proposal's structure with no discount, no custom year breakdown and no
// first-year split. Its PV is the authoritative standard PV.
func standardInputs(in Inputs) (Inputs, bool) {
	if in.SplitFirstYearPayments || in.DPType == "" {
		// No down payment definition to rebuild the standard plan from.
		return Inputs{}, false
	}
	return Inputs{
		DPType:                    in.DPType,
		DownPaymentValue:          in.DownPaymentValue,
		PlanDurationYears:         in.PlanDurationYears,
		InstallmentFrequency:      in.InstallmentFrequency,
		HandoverYear:              in.HandoverYear,
		AdditionalHandoverPayment: in.AdditionalHandoverPayment,
	}, true
}

// Evaluate scores a proposed plan against the standard plan and policy.
// A nil policy applies the built-in defaults. The returned result is
// deterministic for identical inputs.
func Evaluate(std StandardPlan, in Inputs, policy *domain.PolicyConfig) (*Result, error) {
	if fields := validate(std, in); len(fields) > 0 {
		return nil, domain.NewInvalidInput("Invalid plan inputs", fields...)
	}
	if policy == nil {
		policy = domain.DefaultPolicy()
	}

	r := monthlyRate(std.AnnualRatePercent)

	// Re-compute the standard PV from the zero-discount standard schedule;
	// the stored FM value is only a fallback when the schedule cannot be
	// rebuilt from the inputs.
	standardPV := std.StandardPV.InexactFloat64()
	usedStored := true
	if stdIn, ok := standardInputs(in); ok {
		if stdEntries, _, err := buildSchedule(std, stdIn, 0); err == nil {
			standardPV = presentValue(stdEntries, r)
			usedStored = false
		}
	}
	requiredPV := standardPV * policy.PVTolerancePercent.InexactFloat64() / 100

	entries, totals, err := buildSchedule(std, in, requiredPV)
	if err != nil {
		return nil, err
	}

	proposedPV := presentValue(entries, r)

	eval := Evaluation{
		ProposedPV:     proposedPV,
		StandardPV:     standardPV,
		RequiredPV:     requiredPV,
		PVPass:         proposedPV+Epsilon >= requiredPV,
		UsedStoredFMPV: usedStored,
	}

	eval.Conditions = append(eval.Conditions,
		condition("cumulative_y1", 12, entries, totals, policy.Year1MinPercent, policy.Year1MaxPercent),
		condition("cumulative_y2", 24, entries, totals, policy.Year2MinPercent, policy.Year2MaxPercent),
		condition("cumulative_y3", 36, entries, totals, policy.Year3MinPercent, policy.Year3MaxPercent),
	)
	// The handover window is checked only when a handover payment is
	// actually scheduled; with no handover year or no additional payment
	// every handover-dependent check is skipped.
	if in.HandoverYear > 0 && in.AdditionalHandoverPayment.IsPositive() {
		eval.Conditions = append(eval.Conditions,
			condition("cumulative_handover", 12*in.HandoverYear, entries, totals, policy.HandoverMinPercent, policy.HandoverMaxPercent),
		)
	}

	eval.Decision = DecisionAccept
	if !eval.PVPass {
		eval.Decision = DecisionReject
	}
	for _, c := range eval.Conditions {
		if !c.Pass {
			eval.Decision = DecisionReject
		}
	}

	return &Result{Schedule: entries, Totals: totals, Evaluation: eval}, nil
}

var epsilonDec = decimal.NewFromFloat(Epsilon)

func condition(name string, byMonth int, entries []Entry, totals Totals, minPercent decimal.Decimal, maxPercent *decimal.Decimal) Condition {
	actual := cumulativeBy(entries, byMonth)
	percent := decimal.Zero
	if totals.TotalForConditions.IsPositive() {
		percent = actual.Mul(hundred).DivRound(totals.TotalForConditions, 4)
	}
	pass := percent.Add(epsilonDec).GreaterThanOrEqual(minPercent)
	if pass && maxPercent != nil {
		pass = percent.Sub(epsilonDec).LessThanOrEqual(*maxPercent)
	}
	return Condition{
		Name:          name,
		ByMonth:       byMonth,
		ActualAmount:  actual,
		ActualPercent: percent,
		MinPercent:    minPercent,
		MaxPercent:    maxPercent,
		Pass:          pass,
	}
}
