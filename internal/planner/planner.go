// Package planner is the financial plan evaluator: it builds a payment
// schedule from proposal inputs, computes its present value at the standard
// annual rate and produces an ACCEPT/REJECT verdict against the acceptance
// policy. The package is pure; callers resolve pricing and policy rows and
// persist the outcome.
package planner

import (
	"strconv"
	"strings"
	"time"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance applied to PV and percentage comparisons.
const Epsilon = 0.01

// Installment frequencies.
type Frequency string

const (
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	BiAnnually Frequency = "bi-annually"
	Annually   Frequency = "annually"
)

// NormalizeFrequency parses a frequency string case-insensitively. The
// legacy spelling "biannually" is accepted as bi-annually.
func NormalizeFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return Monthly, true
	case "quarterly":
		return Quarterly, true
	case "bi-annually", "biannually":
		return BiAnnually, true
	case "annually":
		return Annually, true
	}
	return "", false
}

// PerYear returns the number of installments per year for the frequency.
func (f Frequency) PerYear() int {
	switch f {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case BiAnnually:
		return 2
	}
	return 1
}

// Down payment input types.
const (
	DPPercentage = "percentage"
	DPAmount     = "amount"
)

// Resolver modes. In ModeInstallments the resolver closes the nominal gap
// between the discrete entries and the net price with a level installment;
// in ModePVTarget it solves the level payment that lifts the schedule PV to
// the policy-required PV. An explicit per-year breakdown disables the
// resolver for the covered years.
const (
	ModeInstallments = "installments"
	ModePVTarget     = "pv_target"
)

// StandardPlan is the FM-configured benchmark the proposal is scored against.
type StandardPlan struct {
	TotalPrice        decimal.Decimal `json:"totalPrice"`
	AnnualRatePercent decimal.Decimal `json:"annualRatePercent"`
	StandardPV        decimal.Decimal `json:"standardPv"`
}

// FirstYearPayment is one verbatim year-one entry used when the down payment
// is split across the first year.
type FirstYearPayment struct {
	Month  int             `json:"month"` // 1..12
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"` // dp | regular
}

// YearInput distributes a nominal total across one plan year.
type YearInput struct {
	Year         int             `json:"year"`
	TotalNominal decimal.Decimal `json:"totalNominal"`
	Frequency    string          `json:"frequency"`
}

// Inputs is the proposed plan.
type Inputs struct {
	Mode                      string             `json:"mode,omitempty"`
	SalesDiscountPercent      decimal.Decimal    `json:"salesDiscountPercent"`
	DPType                    string             `json:"dpType"`
	DownPaymentValue          decimal.Decimal    `json:"downPaymentValue"`
	PlanDurationYears         int                `json:"planDurationYears"`
	InstallmentFrequency      string             `json:"installmentFrequency"`
	HandoverYear              int                `json:"handoverYear"` // 0 = unset
	AdditionalHandoverPayment decimal.Decimal    `json:"additionalHandoverPayment"`
	SplitFirstYearPayments    bool               `json:"splitFirstYearPayments"`
	FirstYearPayments         []FirstYearPayment `json:"firstYearPayments,omitempty"`
	SubsequentYears           []YearInput        `json:"subsequentYears,omitempty"`
	MaintenanceDeposit        decimal.Decimal    `json:"maintenanceDeposit"`
	MaintenanceDepositMonth   int                `json:"maintenanceDepositMonth,omitempty"`
	MaintenanceDepositDate    *time.Time         `json:"maintenanceDepositDate,omitempty"`
	// AnchorDate resolves an explicit maintenance deposit date to a month
	// offset. Unset means today is not consulted and the explicit date form
	// is rejected.
	AnchorDate *time.Time `json:"anchorDate,omitempty"`
}

// Entry payment types.
const (
	EntryDownPayment        = "down_payment"
	EntryInstallment        = "installment"
	EntryHandover           = "handover"
	EntryMaintenanceDeposit = "maintenance_deposit"
)

// Entry is one scheduled payment. MonthOffset counts months from the plan
// anchor; amounts are rounded to 2 decimals at emission.
type Entry struct {
	Label       string          `json:"label"`
	MonthOffset int             `json:"monthOffset"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

// Totals aggregates the schedule.
type Totals struct {
	NetPrice           decimal.Decimal `json:"netPrice"`
	TotalNominal       decimal.Decimal `json:"totalNominal"`       // everything incl. maintenance deposit
	TotalForConditions decimal.Decimal `json:"totalForConditions"` // incl. handover, excl. maintenance deposit
}

// Condition is one cumulative-payment acceptance check.
type Condition struct {
	Name          string           `json:"name"`
	ByMonth       int              `json:"byMonth"`
	ActualAmount  decimal.Decimal  `json:"actualAmount"`
	ActualPercent decimal.Decimal  `json:"actualPercent"`
	MinPercent    decimal.Decimal  `json:"minPercent"`
	MaxPercent    *decimal.Decimal `json:"maxPercent,omitempty"`
	Pass          bool             `json:"pass"`
}

// Acceptance decisions.
const (
	DecisionAccept = "ACCEPT"
	DecisionReject = "REJECT"
)

// Evaluation is the verdict on a proposed schedule.
type Evaluation struct {
	Decision       string      `json:"decision"`
	PVPass         bool        `json:"pvPass"`
	ProposedPV     float64     `json:"proposedPv"`
	StandardPV     float64     `json:"standardPv"`
	RequiredPV     float64     `json:"requiredPv"`
	Conditions     []Condition `json:"conditions"`
	UsedStoredFMPV bool        `json:"usedStoredFMpv"`
}

// Result is the full evaluator output.
type Result struct {
	Schedule   []Entry    `json:"schedule"`
	Totals     Totals     `json:"totals"`
	Evaluation Evaluation `json:"evaluation"`
}

// validate collects per-field input errors. An empty return means the inputs
// are well-formed.
func validate(std StandardPlan, in Inputs) []domain.FieldError {
	var fields []domain.FieldError
	add := func(field, msg string) {
		fields = append(fields, domain.FieldError{Field: field, Message: msg})
	}

	if std.TotalPrice.LessThanOrEqual(decimal.Zero) {
		add("stdPlan.totalPrice", "must be positive")
	}
	if std.AnnualRatePercent.IsNegative() {
		add("stdPlan.annualRatePercent", "must not be negative")
	}
	if std.StandardPV.IsNegative() {
		add("stdPlan.standardPV", "must not be negative")
	}

	if in.Mode != "" && in.Mode != ModeInstallments && in.Mode != ModePVTarget {
		add("mode", "must be installments or pv_target")
	}
	if in.SalesDiscountPercent.IsNegative() {
		add("salesDiscountPercent", "must not be negative")
	}
	if in.PlanDurationYears < 1 || in.PlanDurationYears > 12 {
		add("planDurationYears", "must be between 1 and 12")
	}
	if _, ok := NormalizeFrequency(in.InstallmentFrequency); !ok {
		add("installmentFrequency", "must be monthly, quarterly, bi-annually or annually")
	}
	switch in.DPType {
	case DPPercentage:
		if in.DownPaymentValue.IsNegative() || in.DownPaymentValue.GreaterThan(decimal.NewFromInt(100)) {
			add("downPaymentValue", "percentage must be between 0 and 100")
		}
	case DPAmount:
		if in.DownPaymentValue.IsNegative() {
			add("downPaymentValue", "must not be negative")
		}
	default:
		if !in.SplitFirstYearPayments {
			add("dpType", "must be percentage or amount")
		}
	}
	if in.HandoverYear < 0 || in.HandoverYear > 12 {
		add("handoverYear", "must be between 1 and 12 when set")
	}
	if in.AdditionalHandoverPayment.IsNegative() {
		add("additionalHandoverPayment", "must not be negative")
	}
	if in.MaintenanceDeposit.IsNegative() {
		add("maintenanceDeposit", "must not be negative")
	}
	if in.MaintenanceDepositDate != nil && in.AnchorDate == nil {
		add("maintenanceDepositDate", "requires an anchor date")
	}

	if in.SplitFirstYearPayments {
		if len(in.FirstYearPayments) == 0 {
			add("firstYearPayments", "required when splitFirstYearPayments is set")
		}
		for i, p := range in.FirstYearPayments {
			if p.Month < 1 || p.Month > 12 {
				add(indexedField("firstYearPayments", i, "month"), "must be between 1 and 12")
			}
			if p.Amount.IsNegative() {
				add(indexedField("firstYearPayments", i, "amount"), "must not be negative")
			}
			if p.Type != "dp" && p.Type != "regular" {
				add(indexedField("firstYearPayments", i, "type"), "must be dp or regular")
			}
		}
	} else if len(in.FirstYearPayments) > 0 {
		add("firstYearPayments", "only allowed when splitFirstYearPayments is set")
	}

	minYear := 2
	if in.SplitFirstYearPayments {
		minYear = 1
	}
	seen := map[int]bool{}
	for i, y := range in.SubsequentYears {
		if y.Year < minYear || y.Year > in.PlanDurationYears {
			add(indexedField("subsequentYears", i, "year"), "out of plan range")
		}
		if seen[y.Year] {
			add(indexedField("subsequentYears", i, "year"), "duplicate year")
		}
		seen[y.Year] = true
		if y.TotalNominal.IsNegative() {
			add(indexedField("subsequentYears", i, "totalNominal"), "must not be negative")
		}
		if _, ok := NormalizeFrequency(y.Frequency); !ok {
			add(indexedField("subsequentYears", i, "frequency"), "must be monthly, quarterly, bi-annually or annually")
		}
	}

	return fields
}

func indexedField(name string, i int, sub string) string {
	return name + "[" + strconv.Itoa(i) + "]." + sub
}
