package transport

import (
	"time"

	"github.com/google/uuid"
)

// LeadStage is the sales pipeline position of a lead.
type LeadStage string

const (
	LeadStageNew         LeadStage = "NEW"
	LeadStageContacted   LeadStage = "CONTACTED"
	LeadStageQualified   LeadStage = "QUALIFIED"
	LeadStageProposal    LeadStage = "PROPOSAL"
	LeadStageNegotiating LeadStage = "NEGOTIATING"
	LeadStageClosedWon   LeadStage = "CLOSED_WON"
	LeadStageClosedLost  LeadStage = "CLOSED_LOST"
)

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusActive LeadStatus = "ACTIVE"
	LeadStatusWon    LeadStatus = "WON"
	LeadStatusLost   LeadStatus = "LOST"
	LeadStatusOnHold LeadStatus = "ON_HOLD"
)

// ActivityType classifies an activity log entry.
type ActivityType string

const (
	ActivityTypeMeeting       ActivityType = "MEETING"
	ActivityTypeCall          ActivityType = "CALL"
	ActivityTypeEmailSent     ActivityType = "EMAIL_SENT"
	ActivityTypeEmailReceived ActivityType = "EMAIL_RECEIVED"
	ActivityTypeNote          ActivityType = "NOTE"
	ActivityTypeTask          ActivityType = "TASK"
)

// TaskPriority ranks a to-do item.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskStatus is the lifecycle state of a to-do item.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Outcome values recorded on booking activities.
const (
	OutcomePositive = "positive"
	OutcomeNegative = "negative"
)

// SourceBookMe is the only accepted value of BookingPayload.Source.
const SourceBookMe = "bookme"

// BookingPayload is the inbound notification sent by the booking tool when a meeting is booked.
type BookingPayload struct {
	BookingID     string   `json:"bookingId" validate:"required,max=200"`
	EventType     string   `json:"eventType" validate:"required,max=100"`
	Name          string   `json:"name" validate:"required,max=200"`
	Email         string   `json:"email" validate:"required,email,max=320"`
	Phone         string   `json:"phone,omitempty" validate:"max=50"`
	Company       string   `json:"company,omitempty" validate:"max=200"`
	ScheduledDate string   `json:"scheduledDate" validate:"required,isodatetime"`
	Duration      *float64 `json:"duration" validate:"required,gte=0,lte=1440"`
	MeetingURL    string   `json:"meetingUrl,omitempty" validate:"max=2000"`
	Notes         string   `json:"notes,omitempty" validate:"max=5000"`
	Source        string   `json:"source" validate:"required,eq=bookme"`
	CreatedAt     string   `json:"createdAt" validate:"required,isodatetime"`
}

// BookingUpdateStatus is the kind of change announced by an update notification.
type BookingUpdateStatus string

const (
	BookingCancelled   BookingUpdateStatus = "cancelled"
	BookingRescheduled BookingUpdateStatus = "rescheduled"
)

// UpdateBookingRequest is the inbound notification for a cancelled or rescheduled booking.
type UpdateBookingRequest struct {
	BookingID        string              `json:"bookingId" validate:"required,max=200"`
	Status           BookingUpdateStatus `json:"status" validate:"required,oneof=cancelled rescheduled"`
	NewScheduledDate string              `json:"newScheduledDate,omitempty" validate:"required_if=Status rescheduled,isodatetime"`
}

// LeadSummary is the lead part of a successful sync response.
type LeadSummary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Stage          LeadStage `json:"stage"`
	EstimatedValue *int64    `json:"estimatedValue,omitempty"`
	LeadScore      int       `json:"leadScore"`
}

// ContactSummary is the contact part of a successful sync response.
type ContactSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// ActivitySummary is the activity part of a successful sync response.
type ActivitySummary struct {
	ID            uuid.UUID `json:"id"`
	ScheduledDate time.Time `json:"scheduledDate"`
	Outcome       string    `json:"outcome,omitempty"`
}

// TaskSummary describes one follow-up task created by a sync.
type TaskSummary struct {
	ID       uuid.UUID    `json:"id"`
	Title    string       `json:"title"`
	DueDate  time.Time    `json:"dueDate"`
	Priority TaskPriority `json:"priority"`
}

// BookingSyncResponse is returned for a processed booking.
type BookingSyncResponse struct {
	Success  bool            `json:"success"`
	Lead     LeadSummary     `json:"lead"`
	Contact  ContactSummary  `json:"contact"`
	Activity ActivitySummary `json:"activity"`
	Tasks    []TaskSummary   `json:"tasks"`
}

// UpdateBookingResponse is returned for a processed update notification.
type UpdateBookingResponse struct {
	Success bool `json:"success"`
}
