package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// netPrice applies the sales discount to the list price.
func netPrice(std StandardPlan, in Inputs) decimal.Decimal {
	factor := hundred.Sub(in.SalesDiscountPercent).Div(hundred)
	return std.TotalPrice.Mul(factor).Round(2)
}

// buildSchedule emits the payment entries for the proposal. Entries are
// returned in chronological order with the down payment first within month 0.
func buildSchedule(std StandardPlan, in Inputs, requiredPV float64) ([]Entry, Totals, error) {
	net := netPrice(std, in)
	freq, _ := NormalizeFrequency(in.InstallmentFrequency)

	var entries []Entry
	covered := make(map[int]bool)

	// Down payment, or the verbatim year-one breakdown when split.
	if in.SplitFirstYearPayments {
		covered[1] = true
		for _, p := range in.FirstYearPayments {
			label := "Year 1 Installment"
			typ := EntryInstallment
			if p.Type == "dp" {
				label = "Down Payment"
				typ = EntryDownPayment
			}
			entries = append(entries, Entry{
				Label:       label,
				MonthOffset: p.Month,
				Amount:      p.Amount.Round(2),
				Type:        typ,
			})
		}
	} else {
		dp := in.DownPaymentValue
		if in.DPType == DPPercentage {
			dp = net.Mul(in.DownPaymentValue).Div(hundred)
		}
		entries = append(entries, Entry{
			Label:       "Down Payment",
			MonthOffset: 0,
			Amount:      dp.Round(2),
			Type:        EntryDownPayment,
		})
	}

	// Explicit per-year distributions. Year k runs from month 12k-12
	// exclusive: first installment at 12k-12+12/n, then stride 12/n.
	years := append([]YearInput(nil), in.SubsequentYears...)
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	for _, y := range years {
		covered[y.Year] = true
		yf, _ := NormalizeFrequency(y.Frequency)
		n := yf.PerYear()
		stride := 12 / n
		per := y.TotalNominal.Div(decimal.NewFromInt(int64(n))).Round(2)
		emitted := decimal.Zero
		for j := 1; j <= n; j++ {
			amount := per
			if j == n {
				amount = y.TotalNominal.Sub(emitted).Round(2)
			}
			emitted = emitted.Add(amount)
			entries = append(entries, Entry{
				Label:       fmt.Sprintf("Year %d Installment %d", y.Year, j),
				MonthOffset: 12*y.Year - 12 + stride*j,
				Amount:      amount,
				Type:        EntryInstallment,
			})
		}
	}

	// Handover payment, only when both the year and the amount are set.
	if in.HandoverYear > 0 && in.AdditionalHandoverPayment.IsPositive() {
		entries = append(entries, Entry{
			Label:       "Handover Payment",
			MonthOffset: 12 * in.HandoverYear,
			Amount:      in.AdditionalHandoverPayment.Round(2),
			Type:        EntryHandover,
		})
	}

	// Level-installment resolver over the uncovered years.
	if err := resolveInstallments(std, in, freq, net, covered, requiredPV, &entries); err != nil {
		return nil, Totals{}, err
	}

	// Maintenance deposit: explicit date, else explicit month, else handover
	// month, else month 12. Excluded from PV, included in grand totals.
	if in.MaintenanceDeposit.IsPositive() {
		entries = append(entries, Entry{
			Label:       "Maintenance Deposit",
			MonthOffset: maintenanceMonth(in),
			Amount:      in.MaintenanceDeposit.Round(2),
			Type:        EntryMaintenanceDeposit,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MonthOffset < entries[j].MonthOffset
	})

	totals := Totals{NetPrice: net}
	for _, e := range entries {
		totals.TotalNominal = totals.TotalNominal.Add(e.Amount)
		if e.Type != EntryMaintenanceDeposit {
			totals.TotalForConditions = totals.TotalForConditions.Add(e.Amount)
		}
	}
	return entries, totals, nil
}

// resolveInstallments emits level installments at the plan frequency across
// the years not covered by discrete entries. ModeInstallments closes the
// nominal gap to the net price; ModePVTarget solves the payment that lifts
// the schedule PV to requiredPV.
func resolveInstallments(std StandardPlan, in Inputs, freq Frequency, net decimal.Decimal, covered map[int]bool, requiredPV float64, entries *[]Entry) error {
	n := freq.PerYear()
	stride := 12 / n
	var months []int
	for year := 1; year <= in.PlanDurationYears; year++ {
		if covered[year] {
			continue
		}
		for j := 1; j <= n; j++ {
			months = append(months, 12*year-12+stride*j)
		}
	}
	if len(months) == 0 {
		return nil
	}

	var total decimal.Decimal
	switch in.Mode {
	case ModePVTarget:
		r := monthlyRate(std.AnnualRatePercent)
		gap := requiredPV - presentValue(*entries, r)
		if gap <= Epsilon {
			return nil
		}
		var df float64
		for _, m := range months {
			df += discountFactor(r, m)
		}
		// Round the level payment up so the achieved PV never undershoots
		// the target.
		per := decimal.NewFromFloat(gap / df).RoundUp(2)
		total = per.Mul(decimal.NewFromInt(int64(len(months))))
	default:
		scheduled := decimal.Zero
		for _, e := range *entries {
			scheduled = scheduled.Add(e.Amount)
		}
		total = net.Sub(scheduled)
		if total.LessThan(decimal.NewFromFloat(-Epsilon)) {
			return domain.NewInvalidInput("Scheduled payments exceed the net price",
				domain.FieldError{Field: "subsequentYears", Message: "scheduled payments exceed the net price"})
		}
		if total.LessThanOrEqual(decimal.NewFromFloat(Epsilon)) {
			return nil
		}
	}

	count := decimal.NewFromInt(int64(len(months)))
	per := total.Div(count).Round(2)
	emitted := decimal.Zero
	for i, m := range months {
		amount := per
		if i == len(months)-1 {
			amount = total.Sub(emitted).Round(2)
		}
		emitted = emitted.Add(amount)
		*entries = append(*entries, Entry{
			Label:       fmt.Sprintf("Installment %d", i+1),
			MonthOffset: m,
			Amount:      amount,
			Type:        EntryInstallment,
		})
	}
	return nil
}

func maintenanceMonth(in Inputs) int {
	if in.MaintenanceDepositDate != nil && in.AnchorDate != nil {
		return monthsBetween(*in.AnchorDate, *in.MaintenanceDepositDate)
	}
	if in.MaintenanceDepositMonth > 0 {
		return in.MaintenanceDepositMonth
	}
	if in.HandoverYear > 0 {
		return 12 * in.HandoverYear
	}
	return 12
}

// monthsBetween counts whole months from anchor to date, never negative.
func monthsBetween(anchor, date time.Time) int {
	months := (date.Year()-anchor.Year())*12 + int(date.Month()) - int(anchor.Month())
	if date.Day() > anchor.Day() {
		months++
	}
	if months < 0 {
		return 0
	}
	return months
}
