package domain

import (
	"context"

	"github.com/google/uuid"
)

// Role is an authenticated actor role.
type Role string

const (
	RolePropertyConsultant Role = "property_consultant"
	RoleSalesManager       Role = "sales_manager"
	RoleFinancialManager   Role = "financial_manager"
	RoleFinancialAdmin     Role = "financial_admin"
	RoleTopManagement      Role = "top_management"
	RoleContractAdmin      Role = "contract_admin"
	RoleContractManager    Role = "contract_manager"
	RoleAdmin              Role = "admin"

	// RoleScheduler is the internal actor for background jobs. It is never
	// issued in a token and fails ValidRole.
	RoleScheduler Role = "scheduler"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RolePropertyConsultant, RoleSalesManager, RoleFinancialManager,
		RoleFinancialAdmin, RoleTopManagement, RoleContractAdmin,
		RoleContractManager, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller as seen by the engine.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// User is a system account. Recipient resolution ("all active FMs") reads
// this table.
type User struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   Role      `json:"role"`
	Active bool      `json:"active"`
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListActiveByRole(ctx context.Context, role Role) ([]*User, error)
}
