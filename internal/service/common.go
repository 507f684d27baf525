package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const invalidDataMessage = "The given data was invalid."

// fieldErrors collects validation failures keyed by input field.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// merge copies field details out of a validation DomainError.
func (f fieldErrors) merge(err error) error {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code != apperrors.CodeValidationFailed {
		return err
	}
	for field, value := range domainErr.Details {
		if messages, ok := value.([]string); ok {
			f[field] = append(f[field], messages...)
		}
	}
	return nil
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	details := make(map[string]any, len(f))
	for field, messages := range f {
		details[field] = messages
	}
	return apperrors.NewValidationError(invalidDataMessage, details)
}

func requireText(errs fieldErrors, field, value string, maxLen int) {
	if strings.TrimSpace(value) == "" {
		errs.add(field, "The "+field+" field is required.")
		return
	}
	checkLength(errs, field, value, maxLen)
}

func checkLength(errs fieldErrors, field, value string, maxLen int) {
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		errs.add(field, fmt.Sprintf("The %s may not be greater than %d characters.", field, maxLen))
	}
}

// mapRepoError converts repository sentinels into API errors.
func mapRepoError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, nil)
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict(resource+" already exists", nil)
	}
	return apperrors.MapError(err)
}

// publicUser strips credentials before a user is attached to a response.
func publicUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clone := *user
	clone.PasswordHash = ""
	return &clone
}

type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func newEventPublisher(dispatcher events.Dispatcher, logger *zap.Logger) eventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return eventPublisher{dispatcher: dispatcher, logger: logger}
}

// publish hands event to the dispatcher. Failures are logged and never returned.
func (p eventPublisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max]) + "..."
}
