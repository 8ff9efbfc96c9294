package repository

import (
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"

	"github.com/google/uuid"
)

// Contact is a person identified by email.
type Contact struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     *string
	CompanyID *uuid.UUID
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// UpsertContactParams identifies a contact by Email. Phone is only written when non-nil.
type UpsertContactParams struct {
	Email     string
	FirstName string
	LastName  string
	Phone     *string
	Tags      []string
	At        time.Time
}

// Company is an organisation a contact belongs to.
type Company struct {
	ID        uuid.UUID
	Name      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeadSourceDetails records where a lead came from.
type LeadSourceDetails struct {
	BookingID string `json:"bookingId"`
	EventType string `json:"eventType"`
}

// Lead is a sales opportunity.
type Lead struct {
	ID               uuid.UUID
	Title            string
	Description      string
	CompanyID        *uuid.UUID
	Stage            transport.LeadStage
	Status           transport.LeadStatus
	EstimatedValue   *int64
	IsPaid           bool
	CloseProbability int
	LeadScore        int
	Source           string
	SourceDetails    *LeadSourceDetails
	Tags             []string
	FirstContactDate *time.Time
	LastActivityDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActivityMetadata is the free-form blob stored with booking activities.
type ActivityMetadata struct {
	BookingID  string `json:"bookingId,omitempty"`
	MeetingURL string `json:"meetingUrl,omitempty"`
	Source     string `json:"source,omitempty"`
	EventType  string `json:"eventType,omitempty"`
}

// Activity is a log entry on a lead. BookingID is unique across activities.
type Activity struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	ContactID       *uuid.UUID
	Type            transport.ActivityType
	Subject         string
	Description     string
	ActivityDate    time.Time
	DurationMinutes *int
	Outcome         *string
	Metadata        ActivityMetadata
	BookingID       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Task is a to-do item, usually tied to a lead.
type Task struct {
	ID          uuid.UUID
	LeadID      *uuid.UUID
	Title       string
	Description string
	DueDate     *time.Time
	Priority    transport.TaskPriority
	Status      transport.TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
