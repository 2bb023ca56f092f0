package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Default acceptance thresholds applied when no active policy row exists.
var (
	DefaultPolicyLimitPercent = decimal.NewFromInt(5)
	DefaultPVTolerancePercent = decimal.NewFromInt(100)
	DefaultYear1MinPercent    = decimal.NewFromInt(35)
	DefaultYear2MinPercent    = decimal.NewFromInt(50)
	DefaultYear3MinPercent    = decimal.NewFromInt(65)
	DefaultHandoverMinPercent = decimal.NewFromInt(65)
)

// Per-role discount authority, enforced as a hard cap at plan generation.
var (
	ConsultantDiscountCap = decimal.NewFromInt(2)
	FMDiscountCap         = decimal.NewFromInt(5)
)

// PolicyConfig is the acceptance policy for a scope. The active global row
// with the newest created_at governs; absent or invalid rows fall back to
// the defaults above. Max bounds are optional: nil means no ceiling.
type PolicyConfig struct {
	ID                 uuid.UUID        `json:"id"`
	ScopeType          string           `json:"scopeType"`
	PolicyLimitPercent decimal.Decimal  `json:"policyLimitPercent"`
	PVTolerancePercent decimal.Decimal  `json:"pvTolerancePercent"`
	Year1MinPercent    decimal.Decimal  `json:"year1MinPercent"`
	Year1MaxPercent    *decimal.Decimal `json:"year1MaxPercent,omitempty"`
	Year2MinPercent    decimal.Decimal  `json:"year2MinPercent"`
	Year2MaxPercent    *decimal.Decimal `json:"year2MaxPercent,omitempty"`
	Year3MinPercent    decimal.Decimal  `json:"year3MinPercent"`
	Year3MaxPercent    *decimal.Decimal `json:"year3MaxPercent,omitempty"`
	HandoverMinPercent decimal.Decimal  `json:"handoverMinPercent"`
	HandoverMaxPercent *decimal.Decimal `json:"handoverMaxPercent,omitempty"`
	Active             bool             `json:"active"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// ScopeGlobal is the only policy scope the resolver consults today.
const ScopeGlobal = "global"

// DefaultPolicy returns the built-in policy used when no row is configured.
func DefaultPolicy() *PolicyConfig {
	return &PolicyConfig{
		ScopeType:          ScopeGlobal,
		PolicyLimitPercent: DefaultPolicyLimitPercent,
		PVTolerancePercent: DefaultPVTolerancePercent,
		Year1MinPercent:    DefaultYear1MinPercent,
		Year2MinPercent:    DefaultYear2MinPercent,
		Year3MinPercent:    DefaultYear3MinPercent,
		HandoverMinPercent: DefaultHandoverMinPercent,
		Active:             true,
	}
}

// DiscountCap returns the hard discount authority for a role at plan
// generation time, or ErrForbidden for roles without generation authority.
func DiscountCap(role Role) (decimal.Decimal, error) {
	switch role {
	case RolePropertyConsultant:
		return ConsultantDiscountCap, nil
	case RoleFinancialManager, RoleFinancialAdmin, RoleAdmin:
		return FMDiscountCap, nil
	}
	return decimal.Zero, NewForbidden("Role has no discount authority")
}

type PolicyRepository interface {
	// GetActiveGlobal returns the most recently created active global policy
	// or ErrNotFound when none is configured.
	GetActiveGlobal(ctx context.Context) (*PolicyConfig, error)
	Create(ctx context.Context, policy *PolicyConfig) (*PolicyConfig, error)
}
