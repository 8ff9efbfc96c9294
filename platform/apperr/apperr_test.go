package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, New(tc.kind, "x").HTTPStatus())
		})
	}
}

func TestGetKindFollowsWrapChain(t *testing.T) {
	base := NotFound("booking not found")
	wrapped := fmt.Errorf("update booking: %w", base)

	assert.Equal(t, KindNotFound, GetKind(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, KindUnknown, GetKind(errors.New("plain")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(KindInternal, "transaction failed", errors.New("connection reset")).WithOp("bookings.Process")
	assert.Equal(t, "bookings.Process: transaction failed: connection reset", err.Error())
	assert.ErrorIs(t, err, err.Err)
}
