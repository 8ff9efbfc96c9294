package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/apperr"
	"github.com/mfeltenmark/freelance-crm/platform/phone"
	"github.com/mfeltenmark/freelance-crm/platform/sanitize"
	"github.com/mfeltenmark/freelance-crm/platform/validator"
)

// Event types with a follow-up schedule.
const (
	EventTypeWorkshop     = "workshop"
	EventTypeConsultation = "30min-consultation"
)

// Booking is a validated booking notification with parsed dates and cleaned text.
type Booking struct {
	ID              string
	EventType       string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Company         string
	ScheduledAt     time.Time
	DurationMinutes float64
	MeetingURL      string
	Notes           string
	CreatedAt       time.Time
}

// FullName is the display name used in lead titles.
func (b Booking) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// HasCompany reports whether the booking names a company.
func (b Booking) HasCompany() bool {
	return b.Company != ""
}

// MaxDurationMinutes bounds BookingPayload.Duration; longer meetings are not bookable.
const MaxDurationMinutes = 1440

// NewBooking converts a validated payload. Dates without an offset are read in loc.
// Text fields are checked again after cleaning: a value made only of markup or
// whitespace passes the struct tags but is as good as missing.
func NewBooking(p transport.BookingPayload, loc *time.Location) (Booking, error) {
	b := Booking{
		ID:         strings.TrimSpace(p.BookingID),
		EventType:  sanitize.Line(p.EventType),
		Email:      strings.TrimSpace(p.Email),
		Phone:      phone.NormalizeE164(p.Phone),
		Company:    sanitize.Line(p.Company),
		MeetingURL: strings.TrimSpace(p.MeetingURL),
		Notes:      sanitize.Text(p.Notes),
	}
	b.FirstName, b.LastName = SplitName(sanitize.Line(p.Name))

	details := validator.FieldErrors{}
	if b.ID == "" {
		details["bookingId"] = "is required"
	}
	if b.EventType == "" {
		details["eventType"] = "is required"
	}
	if b.FirstName == "" {
		details["name"] = "is required"
	}

	var err error
	if b.ScheduledAt, err = validator.ParseISODateTime(p.ScheduledDate, loc); err != nil {
		details["scheduledDate"] = "must be an ISO 8601 datetime"
	}
	if b.CreatedAt, err = validator.ParseISODateTime(p.CreatedAt, loc); err != nil {
		details["createdAt"] = "must be an ISO 8601 datetime"
	}

	if p.Duration != nil {
		b.DurationMinutes = *p.Duration
	}
	if b.DurationMinutes < 0 || b.DurationMinutes > MaxDurationMinutes || math.IsNaN(b.DurationMinutes) {
		details["duration"] = fmt.Sprintf("must be between 0 and %d", MaxDurationMinutes)
	}

	if len(details) > 0 {
		return Booking{}, apperr.Validation("Invalid payload").WithDetails(details)
	}
	return b, nil
}

// SplitName returns the first whitespace separated token and the rest joined by single spaces.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// roundedMinutes is the duration stored on the activity.
func (b Booking) roundedMinutes() int {
	return int(math.Round(b.DurationMinutes))
}

func invalidField(field, msg string) error {
	return apperr.Validation("Invalid payload").WithDetails(validator.FieldErrors{field: msg})
}
