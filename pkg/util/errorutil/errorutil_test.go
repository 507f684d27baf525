package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("loading: %w", NewNotFound("ticket", nil))
	domainErr := ToDomainError(wrapped)
	assert.Equal(t, CodeNotFound, domainErr.Code)
	assert.Equal(t, "ticket not found", domainErr.Message)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)

	assert.Equal(t, CodeNotFound, ToDomainError(sql.ErrNoRows).Code)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.Equal(t, "internal server error", internal.Message)
}

func TestTaxonomyStatuses(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"validation":   {NewValidationError("bad", map[string]any{"subject": []string{"required"}}), http.StatusUnprocessableEntity, CodeValidationFailed},
		"unauthorized": {NewUnauthorized("no token"), http.StatusUnauthorized, CodeUnauthorized},
		"forbidden":    {ErrUnauthorizedTicket, http.StatusForbidden, CodeForbidden},
		"conflict":     {NewConflict("dup", nil), http.StatusConflict, CodeConflict},
		"rate":         {NewRateLimited(), http.StatusTooManyRequests, CodeRateLimited},
		"storage":      {NewStorageError(errors.New("disk full")), http.StatusInternalServerError, CodeStorage},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			domainErr := ToDomainError(tc.err)
			assert.Equal(t, tc.status, domainErr.HTTPStatus)
			assert.Equal(t, tc.code, domainErr.Code)
			assert.True(t, IsCode(tc.err, tc.code))
		})
	}
}

func TestStorageErrorHidesCause(t *testing.T) {
	cause := errors.New("s3: access denied")
	err := NewStorageError(cause)
	assert.Equal(t, "attachment storage failed", ToDomainError(err).Message)
	assert.ErrorIs(t, err, cause)
}

func TestFromHTTPStatus(t *testing.T) {
	assert.Equal(t, CodeNotFound, FromHTTPStatus(http.StatusNotFound, "Cannot GET /nope").Code)
	assert.Equal(t, CodePayloadTooLarge, FromHTTPStatus(http.StatusRequestEntityTooLarge, "").Code)
	assert.Equal(t, "Request Entity Too Large", FromHTTPStatus(http.StatusRequestEntityTooLarge, "").Message)
	assert.Equal(t, CodeBadRequest, FromHTTPStatus(http.StatusBadRequest, "bad json").Code)

	internal := FromHTTPStatus(http.StatusServiceUnavailable, "down")
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, "internal server error", internal.Message)
}
