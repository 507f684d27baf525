package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestCanAccess(t *testing.T) {
	owner := &domain.User{ID: "u1", Role: domain.RoleCustomer}
	other := &domain.User{ID: "u2", Role: domain.RoleCustomer}
	admin := &domain.User{ID: "a1", Role: domain.RoleAdmin}
	ticket := &domain.Ticket{ID: "t1", OwnerID: "u1"}

	assert.True(t, CanAccess(owner, ticket))
	assert.True(t, CanAccess(admin, ticket))
	assert.False(t, CanAccess(other, ticket))
	assert.False(t, CanAccess(nil, ticket))
	assert.False(t, CanAccess(owner, nil))
}

func TestGateReturnsUniformError(t *testing.T) {
	gate := NewTicketGate()
	ticket := &domain.Ticket{ID: "t1", OwnerID: "u1"}

	assert.NoError(t, gate.Authorize(&domain.User{ID: "u1", Role: domain.RoleCustomer}, ticket))

	err := gate.Authorize(&domain.User{ID: "u2", Role: domain.RoleCustomer}, ticket)
	assert.Same(t, apperrors.ErrUnauthorizedTicket, err)
	assert.Equal(t, "Unauthorized access to this ticket", err.Error())

	assert.Same(t, apperrors.ErrUnauthorizedTicket, gate.Authorize(nil, ticket))
}
