package realtime

import (
	"context"
	"errors"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/policy"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ChannelAuthorizer decides who may join a ticket channel. Unknown tickets are denied.
type ChannelAuthorizer struct {
	tickets repository.TicketRepository
	gate    policy.Gate
}

// NewChannelAuthorizer builds an authorizer backed by the ticket gate.
func NewChannelAuthorizer(tickets repository.TicketRepository, gate policy.Gate) *ChannelAuthorizer {
	return &ChannelAuthorizer{tickets: tickets, gate: gate}
}

// AuthorizeTicket checks user against the ticket behind ticketID.
func (a *ChannelAuthorizer) AuthorizeTicket(ctx context.Context, user *domain.User, ticketID string) error {
	ticket, err := a.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrUnauthorizedTicket
		}
		return apperrors.MapError(err)
	}
	return a.gate.Authorize(user, ticket)
}

// AuthorizeChannel checks user against a channel name and returns the ticket id it names.
func (a *ChannelAuthorizer) AuthorizeChannel(ctx context.Context, user *domain.User, channelName string) (string, error) {
	ticketID, ok := ParseChannelName(channelName)
	if !ok {
		return "", apperrors.ErrUnauthorizedTicket
	}
	if err := a.AuthorizeTicket(ctx, user, ticketID); err != nil {
		return "", err
	}
	return ticketID, nil
}
