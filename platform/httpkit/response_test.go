package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfeltenmark/freelance-crm/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func runHandleError(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	assert.True(t, HandleError(c, err))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	assert.False(t, HandleError(c, nil))
}

func TestHandleErrorValidationDetails(t *testing.T) {
	err := apperr.Validation("Invalid payload").WithDetails(map[string]string{"email": "is required"})

	rec, body := runHandleError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid payload", body["error"])
	assert.Equal(t, map[string]any{"email": "is required"}, body["details"])
}

func TestHandleErrorWrappedNotFound(t *testing.T) {
	rec, body := runHandleError(t, fmt.Errorf("update: %w", apperr.NotFound("Booking not found")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Booking not found", body["error"])
}

func TestHandleErrorUntypedIs500WithMessage(t *testing.T) {
	rec, body := runHandleError(t, errors.New("insert task: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "insert task: connection reset", body["message"])
}

func TestHandleErrorInternalKindIncludesCause(t *testing.T) {
	err := apperr.Wrap(apperr.KindInternal, "transaction failed", errors.New("deadlock detected"))
	rec, body := runHandleError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "transaction failed: deadlock detected", body["message"])
}
