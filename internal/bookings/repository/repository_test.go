package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/repository"
	"github.com/mfeltenmark/freelance-crm/internal/bookings/service"
	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/internal/testhelpers"
	"github.com/mfeltenmark/freelance-crm/platform/apperr"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func setup(t *testing.T) (*testhelpers.TestDB, *repository.Repository, *service.Service) {
	t.Helper()
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t)

	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	repo := repository.New(tdb.Pool)
	svc := service.New(repo, nil, loc, logger.Discard())
	svc.SetClock(func() time.Time { return time.Date(2026, 5, 4, 8, 0, 0, 0, loc) })
	return tdb, repo, svc
}

func booking(id, email, company string) transport.BookingPayload {
	duration := 60.0
	return transport.BookingPayload{
		BookingID:     id,
		EventType:     service.EventTypeWorkshop,
		Name:          "Anna Svensson",
		Email:         email,
		Company:       company,
		ScheduledDate: "2026-05-20T09:00:00Z",
		Duration:      &duration,
		Source:        transport.SourceBookMe,
		CreatedAt:     "2026-05-04T06:00:00Z",
	}
}

func count(t *testing.T, tdb *testhelpers.TestDB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, tdb.Pool.QueryRow(context.Background(), `SELECT count(*) FROM `+table).Scan(&n))
	return n
}

func TestProcessBookingPersistsGraph(t *testing.T) {
	tdb, _, svc := setup(t)
	ctx := context.Background()

	first, err := svc.ProcessBooking(ctx, booking("bk-1", "anna@acme.se", "Acme AB"), nil)
	require.NoError(t, err)
	second, err := svc.ProcessBooking(ctx, booking("bk-2", "erik@acme.se", "Acme AB"), nil)
	require.NoError(t, err)

	assert.Equal(t, first.Lead.ID, second.Lead.ID)
	assert.Equal(t, 1, count(t, tdb, "companies"))
	assert.Equal(t, 2, count(t, tdb, "contacts"))
	assert.Equal(t, 1, count(t, tdb, "leads"))
	assert.Equal(t, 2, count(t, tdb, "activities"))
	assert.Equal(t, 6, count(t, tdb, "tasks"))

	var companyID uuid.UUID
	require.NoError(t, tdb.Pool.QueryRow(ctx, `SELECT company_id FROM contacts WHERE email = 'erik@acme.se'`).Scan(&companyID))
	assert.NotEqual(t, uuid.Nil, companyID)
}

func TestProcessBookingDuplicateIsConflict(t *testing.T) {
	tdb, _, svc := setup(t)
	ctx := context.Background()

	_, err := svc.ProcessBooking(ctx, booking("bk-1", "anna@acme.se", ""), nil)
	require.NoError(t, err)

	_, err = svc.ProcessBooking(ctx, booking("bk-1", "anna@acme.se", ""), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, count(t, tdb, "activities"))
}

func TestCreateActivityUniqueBookingID(t *testing.T) {
	_, repo, svc := setup(t)
	ctx := context.Background()

	res, err := svc.ProcessBooking(ctx, booking("bk-1", "anna@acme.se", ""), nil)
	require.NoError(t, err)

	bookingID := "bk-1"
	err = repo.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.CreateActivity(ctx, repository.Activity{
			LeadID:       res.Lead.ID,
			Type:         transport.ActivityTypeMeeting,
			Subject:      "dup",
			ActivityDate: time.Now(),
			BookingID:    &bookingID,
			CreatedAt:    time.Now(),
		})
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicateBooking)
}

func TestWithinTxRollsBack(t *testing.T) {
	tdb, repo, _ := setup(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.UpsertContact(ctx, repository.UpsertContactParams{Email: "anna@acme.se", FirstName: "Anna", At: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, tdb, "contacts"))
}

func TestConcurrentBookingsShareCompanyAndLead(t *testing.T) {
	tdb, _, svc := setup(t)
	ctx := context.Background()

	var g errgroup.Group
	for i, email := range []string{"a@acme.se", "b@acme.se", "c@acme.se", "d@acme.se"} {
		id := "bk-" + string(rune('1'+i))
		payload := booking(id, email, "Acme AB")
		g.Go(func() error {
			_, err := svc.ProcessBooking(ctx, payload, nil)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, count(t, tdb, "companies"))
	assert.Equal(t, 1, count(t, tdb, "leads"))
	assert.Equal(t, 4, count(t, tdb, "activities"))
}

func TestCancelAndReschedule(t *testing.T) {
	tdb, _, svc := setup(t)
	ctx := context.Background()

	_, err := svc.ProcessBooking(ctx, booking("bk-1", "anna@acme.se", "Acme AB"), nil)
	require.NoError(t, err)

	_, err = svc.UpdateBooking(ctx, transport.UpdateBookingRequest{BookingID: "bk-1", Status: transport.BookingRescheduled, NewScheduledDate: "2026-05-27T09:00:00Z"}, nil)
	require.NoError(t, err)
	_, err = svc.UpdateBooking(ctx, transport.UpdateBookingRequest{BookingID: "bk-1", Status: transport.BookingCancelled}, nil)
	require.NoError(t, err)

	var subject, outcome string
	var at time.Time
	require.NoError(t, tdb.Pool.QueryRow(ctx, `SELECT subject, outcome, activity_date FROM activities WHERE booking_id = 'bk-1'`).Scan(&subject, &outcome, &at))
	assert.Equal(t, "workshop - Scheduled via BookMe [CANCELLED]", subject)
	assert.Equal(t, transport.OutcomeNegative, outcome)
	assert.True(t, at.Equal(time.Date(2026, 5, 27, 9, 0, 0, 0, time.UTC)))

	var open int
	require.NoError(t, tdb.Pool.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE status = 'todo'`).Scan(&open))
	assert.Zero(t, open)
}
