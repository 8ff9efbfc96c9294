// Package events holds the booking domain events published after a
// webhook request commits. Routing lives in platform/events.
package events

import (
	"encoding/json"
	"time"

	"github.com/mfeltenmark/freelance-crm/platform/events"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus returns the process-local bus used by cmd/api.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// BookingSynced is published after a booking notification was committed as CRM records.
type BookingSynced struct {
	BaseEvent
	BookingID   string          `json:"bookingId"`
	EventType   string          `json:"eventType"`
	Integration string          `json:"integration"`
	ContactID   uuid.UUID       `json:"contactId"`
	LeadID      uuid.UUID       `json:"leadId"`
	LeadCreated bool            `json:"leadCreated"`
	ActivityID  uuid.UUID       `json:"activityId"`
	TaskIDs     []uuid.UUID     `json:"taskIds"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (e BookingSynced) EventName() string { return "bookings.booking.synced" }

// BookingCancelled is published after a cancellation notice was applied.
type BookingCancelled struct {
	BaseEvent
	BookingID      string          `json:"bookingId"`
	Integration    string          `json:"integration"`
	ActivityID     uuid.UUID       `json:"activityId"`
	LeadID         uuid.UUID       `json:"leadId"`
	CancelledTasks int64           `json:"cancelledTasks"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func (e BookingCancelled) EventName() string { return "bookings.booking.cancelled" }

// BookingRescheduled is published after a reschedule notice was applied.
type BookingRescheduled struct {
	BaseEvent
	BookingID        string          `json:"bookingId"`
	Integration      string          `json:"integration"`
	ActivityID       uuid.UUID       `json:"activityId"`
	LeadID           uuid.UUID       `json:"leadId"`
	PreviousDate     time.Time       `json:"previousDate"`
	NewScheduledDate time.Time       `json:"newScheduledDate"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

func (e BookingRescheduled) EventName() string { return "bookings.booking.rescheduled" }
