package crmsync

import (
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
)

// isoMillis matches the timestamps the booking tool has always sent.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Booking is a meeting as recorded by the booking tool.
type Booking struct {
	ID         string
	EventType  string
	Name       string
	Email      string
	Phone      string
	Company    string
	StartsAt   time.Time
	Duration   time.Duration
	MeetingURL string
	Notes      string
	CreatedAt  time.Time
}

// PrepareBooking packs a booking into the webhook payload. Times are sent in UTC.
func PrepareBooking(b Booking) transport.BookingPayload {
	minutes := b.Duration.Minutes()
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return transport.BookingPayload{
		BookingID:     b.ID,
		EventType:     b.EventType,
		Name:          b.Name,
		Email:         b.Email,
		Phone:         b.Phone,
		Company:       b.Company,
		ScheduledDate: b.StartsAt.UTC().Format(isoMillis),
		Duration:      &minutes,
		MeetingURL:    b.MeetingURL,
		Notes:         b.Notes,
		Source:        transport.SourceBookMe,
		CreatedAt:     created.UTC().Format(isoMillis),
	}
}

// CancelRequest builds a cancellation notice.
func CancelRequest(bookingID string) transport.UpdateBookingRequest {
	return transport.UpdateBookingRequest{BookingID: bookingID, Status: transport.BookingCancelled}
}

// RescheduleRequest builds a reschedule notice for the new start time.
func RescheduleRequest(bookingID string, startsAt time.Time) transport.UpdateBookingRequest {
	return transport.UpdateBookingRequest{
		BookingID:        bookingID,
		Status:           transport.BookingRescheduled,
		NewScheduledDate: startsAt.UTC().Format(isoMillis),
	}
}
