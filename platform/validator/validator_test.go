package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email  string   `json:"email" validate:"required,email"`
	When   string   `json:"when" validate:"required,isodatetime"`
	Source string   `json:"source" validate:"required,eq=bookme"`
	Status string   `json:"status" validate:"oneof=cancelled rescheduled"`
	Length *float64 `json:"length" validate:"required,gte=0"`
}

func TestFieldsReportsEveryFailure(t *testing.T) {
	val := New()
	negative := -5.0

	err := val.Struct(sample{Email: "nope", When: "tomorrow", Source: "calendly", Status: "gone", Length: &negative})
	require.Error(t, err)

	fields := Fields(err)
	assert.Equal(t, FieldErrors{
		"email":  "must be a valid email address",
		"when":   "must be an ISO 8601 datetime",
		"source": `must be "bookme"`,
		"status": "must be one of: cancelled, rescheduled",
		"length": "must be greater than or equal to 0",
	}, fields)
}

func TestFieldsRequired(t *testing.T) {
	err := New().Struct(sample{Status: "cancelled"})
	fields := Fields(err)

	for _, name := range []string{"email", "when", "source", "length"} {
		assert.Equal(t, "is required", fields[name], name)
	}
	assert.NotContains(t, fields, "status")
}

func TestFieldsUpperBound(t *testing.T) {
	type bounded struct {
		Minutes float64 `json:"minutes" validate:"lte=1440"`
	}
	assert.Equal(t, FieldErrors{"minutes": "must be less than or equal to 1440"}, Fields(New().Struct(bounded{Minutes: 1e9})))
}

func TestFieldsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Fields(errors.New("boom")))
}

func TestParseISODateTime(t *testing.T) {
	stockholm, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	zoned, err := ParseISODateTime("2026-03-10T09:30:00.000Z", stockholm)
	require.NoError(t, err)
	assert.True(t, zoned.Equal(time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)))

	offset, err := ParseISODateTime("2026-03-10T10:30:00+01:00", stockholm)
	require.NoError(t, err)
	assert.True(t, offset.Equal(zoned))

	local, err := ParseISODateTime("2026-03-10T10:30:00", stockholm)
	require.NoError(t, err)
	assert.True(t, local.Equal(zoned))

	for _, bad := range []string{"", "2026-03-10", "10/03/2026 10:30", "not a date"} {
		assert.False(t, IsISODateTime(bad), bad)
	}
}

type conditional struct {
	Status string `json:"status" validate:"required,oneof=cancelled rescheduled"`
	When   string `json:"when" validate:"required_if=Status rescheduled,isodatetime"`
}

func TestRequiredIfWithDate(t *testing.T) {
	val := New()

	assert.NoError(t, val.Struct(conditional{Status: "cancelled"}))
	assert.Equal(t, FieldErrors{"when": "is required for this status"}, Fields(val.Struct(conditional{Status: "rescheduled"})))
	assert.Equal(t, FieldErrors{"when": "must be an ISO 8601 datetime"}, Fields(val.Struct(conditional{Status: "rescheduled", When: "soon"})))
	assert.NoError(t, val.Struct(conditional{Status: "rescheduled", When: "2026-05-01T10:00:00Z"}))
}
