package policy

import (
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// CanAccess reports whether user may read or modify ticket.
func CanAccess(user *domain.User, ticket *domain.Ticket) bool {
	if user == nil || ticket == nil {
		return false
	}
	return user.IsAdmin() || ticket.OwnerID == user.ID
}

// Gate authorizes ticket-scoped operations.
type Gate interface {
	Authorize(user *domain.User, ticket *domain.Ticket) error
}

type ticketGate struct{}

// NewTicketGate returns the admin-or-owner gate.
func NewTicketGate() Gate {
	return ticketGate{}
}

// Authorize returns ErrUnauthorizedTicket for every denial.
func (ticketGate) Authorize(user *domain.User, ticket *domain.Ticket) error {
	if !CanAccess(user, ticket) {
		return apperrors.ErrUnauthorizedTicket
	}
	return nil
}
