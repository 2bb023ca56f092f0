// Package statemachine is the entity-parameterised approval engine. Each
// entity kind declares a transition table mapping (state, action, role) to
// the next state; services resolve transitions inside the row-locked
// transaction that performs the write.
package statemachine

import (
	"fmt"

	"github.com/propline/dealdesk-backend/internal/domain"
)

// State is an entity lifecycle state.
type State string

// Action is a requested transition.
type Action string

// Common actions shared across tables.
const (
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionSubmit       Action = "submit"
	ActionCancel       Action = "cancel"
	ActionExpire       Action = "expire"
	ActionExecute      Action = "execute"
	ActionMarkAccepted Action = "mark_accepted"
	ActionTMBypass     Action = "approve_tm_bypass"
)

// Transition is one row of a transition table.
type Transition struct {
	From   State
	Action Action
	Roles  []domain.Role
	To     State
}

// Machine resolves transitions for one entity kind.
type Machine struct {
	entity      string
	transitions []Transition
}

// New builds a machine over a fixed transition table.
func New(entity string, transitions ...Transition) *Machine {
	return &Machine{entity: entity, transitions: transitions}
}

// Entity returns the entity kind the machine governs.
func (m *Machine) Entity() string {
	return m.entity
}

// Resolve returns the next state for (from, action, role). A missing
// (from, action) pair is a STATE_MISMATCH; a known pair whose role set does
// not include role is FORBIDDEN.
func (m *Machine) Resolve(from State, action Action, role domain.Role) (State, error) {
	actionKnown := false
	for _, t := range m.transitions {
		if t.From != from || t.Action != action {
			continue
		}
		actionKnown = true
		for _, r := range t.Roles {
			if r == role || role == domain.RoleAdmin {
				return t.To, nil
			}
		}
	}
	if actionKnown {
		return "", domain.NewForbidden(fmt.Sprintf("Role %s may not %s a %s", role, action, m.entity))
	}
	return "", domain.NewStateMismatch(fmt.Sprintf("Cannot %s a %s in state %s", action, m.entity, from))
}
