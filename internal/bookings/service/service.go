// Package service turns booking notifications into CRM records.
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/repository"
	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/internal/events"
	"github.com/mfeltenmark/freelance-crm/platform/apperr"
	"github.com/mfeltenmark/freelance-crm/platform/logger"
	"github.com/mfeltenmark/freelance-crm/platform/validator"

	"github.com/google/uuid"
)

const (
	tagBookMe        = "bookme"
	leadSourceBookMe = "BookMe"

	repeatBookingScore      = 60
	initialCloseProbability = 50
	workshopValue           = int64(15000)
	defaultValue            = int64(5000)
)

// Store runs a unit of work in one database transaction.
type Store interface {
	WithinTx(ctx context.Context, fn func(repository.Tx) error) error
}

// Service orchestrates booking ingestion and booking updates.
type Service struct {
	store Store
	bus   events.Bus
	loc   *time.Location
	now   func() time.Time
	log   *logger.Logger
}

// New creates a booking service. Follow-up times are computed in loc.
func New(store Store, bus events.Bus, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: store,
		bus:   bus,
		loc:   loc,
		now:   time.Now,
		log:   log,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type syncResult struct {
	contact     repository.Contact
	lead        repository.Lead
	leadCreated bool
	activity    repository.Activity
	tasks       []repository.Task
}

// ProcessBooking writes contact, company, lead, activity and follow-up tasks for
// one booking in a single transaction. A booking id that was already ingested
// fails with a conflict and writes nothing. raw is the request body as received
// and is only forwarded on the published event.
func (s *Service) ProcessBooking(ctx context.Context, payload transport.BookingPayload, raw []byte) (transport.BookingSyncResponse, error) {
	booking, err := NewBooking(payload, s.loc)
	if err != nil {
		return transport.BookingSyncResponse{}, err
	}

	now := s.now()
	var res syncResult
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var txErr error
		res, txErr = s.ingest(ctx, tx, booking, now)
		return txErr
	})
	if err != nil {
		if apperr.GetKind(err) == apperr.KindUnknown {
			s.log.WithContext(ctx).Error("bookings: transaction rolled back", "bookingId", booking.ID, "error", err)
		}
		return transport.BookingSyncResponse{}, err
	}

	s.log.WithContext(ctx).Info("bookings: booking synced",
		"bookingId", booking.ID,
		"eventType", booking.EventType,
		"leadId", res.lead.ID,
		"leadCreated", res.leadCreated,
		"tasks", len(res.tasks),
	)
	s.publish(ctx, events.BookingSynced{
		BaseEvent:   events.NewBaseEvent(),
		BookingID:   booking.ID,
		EventType:   booking.EventType,
		Integration: integration(ctx),
		ContactID:   res.contact.ID,
		LeadID:      res.lead.ID,
		LeadCreated: res.leadCreated,
		ActivityID:  res.activity.ID,
		TaskIDs:     taskIDs(res.tasks),
		Payload:     rawJSON(raw),
	})

	return toSyncResponse(res), nil
}

func (s *Service) ingest(ctx context.Context, tx repository.Tx, b Booking, now time.Time) (syncResult, error) {
	var res syncResult

	existing, err := tx.FindActivityByBookingID(ctx, b.ID)
	if err != nil {
		return res, err
	}
	if existing != nil {
		return res, apperr.Wrap(apperr.KindConflict, "Booking already processed", repository.ErrDuplicateBooking).
			WithDetails(map[string]string{"bookingId": b.ID, "activityId": existing.ID.String()})
	}

	res.contact, err = s.resolveContact(ctx, tx, b, now)
	if err != nil {
		return res, err
	}

	companyID, err := s.resolveCompany(ctx, tx, b, res.contact, now)
	if err != nil {
		return res, err
	}

	res.lead, res.leadCreated, err = s.resolveLead(ctx, tx, b, companyID, now)
	if err != nil {
		return res, err
	}

	res.activity, err = s.recordActivity(ctx, tx, b, res.lead.ID, res.contact.ID, now)
	if err != nil {
		return res, err
	}

	for _, plan := range PlanFollowUps(b, now, s.loc) {
		due := plan.DueDate
		task, err := tx.CreateTask(ctx, repository.Task{
			LeadID:      &res.lead.ID,
			Title:       plan.Title,
			Description: plan.Description,
			DueDate:     &due,
			Priority:    plan.Priority,
			Status:      transport.TaskStatusTodo,
			CreatedAt:   now,
		})
		if err != nil {
			return res, err
		}
		res.tasks = append(res.tasks, task)
	}

	return res, nil
}

func (s *Service) resolveContact(ctx context.Context, tx repository.Tx, b Booking, now time.Time) (repository.Contact, error) {
	var phone *string
	if b.Phone != "" {
		phone = &b.Phone
	}
	return tx.UpsertContact(ctx, repository.UpsertContactParams{
		Email:     b.Email,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Phone:     phone,
		Tags:      bookingTags(b),
		At:        now,
	})
}

func (s *Service) resolveCompany(ctx context.Context, tx repository.Tx, b Booking, contact repository.Contact, now time.Time) (*uuid.UUID, error) {
	if !b.HasCompany() {
		return nil, nil
	}

	if err := tx.LockKey(ctx, "company:"+b.Company); err != nil {
		return nil, err
	}

	company, err := tx.FindCompanyByName(ctx, b.Company)
	if err != nil {
		return nil, err
	}
	if company == nil {
		created, err := tx.CreateCompany(ctx, repository.Company{
			Name:      b.Company,
			Tags:      []string{tagBookMe},
			CreatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		company = &created
	}

	if err := tx.SetContactCompany(ctx, contact.ID, company.ID, now); err != nil {
		return nil, err
	}
	return &company.ID, nil
}

// resolveLead reuses the company's ACTIVE lead for the same event type. Without
// a company there is no match key, so every booking gets its own lead.
func (s *Service) resolveLead(ctx context.Context, tx repository.Tx, b Booking, companyID *uuid.UUID, now time.Time) (repository.Lead, bool, error) {
	if companyID != nil {
		if err := tx.LockKey(ctx, "lead:"+companyID.String()+":"+b.EventType); err != nil {
			return repository.Lead{}, false, err
		}
		existing, err := tx.FindActiveLead(ctx, *companyID, b.EventType)
		if err != nil {
			return repository.Lead{}, false, err
		}
		if existing != nil {
			lead, err := tx.TouchLead(ctx, existing.ID, now, repeatBookingScore)
			return lead, false, err
		}
	}

	value := defaultValue
	if b.EventType == EventTypeWorkshop {
		value = workshopValue
	}

	lead, err := tx.CreateLead(ctx, repository.Lead{
		Title:            leadTitle(b),
		Description:      leadDescription(b),
		CompanyID:        companyID,
		Stage:            transport.LeadStageContacted,
		Status:           transport.LeadStatusActive,
		EstimatedValue:   &value,
		IsPaid:           false,
		CloseProbability: initialCloseProbability,
		LeadScore:        repeatBookingScore,
		Source:           leadSourceBookMe,
		SourceDetails:    &repository.LeadSourceDetails{BookingID: b.ID, EventType: b.EventType},
		Tags:             bookingTags(b),
		FirstContactDate: &now,
		LastActivityDate: &now,
		CreatedAt:        now,
	})
	return lead, err == nil, err
}

func (s *Service) recordActivity(ctx context.Context, tx repository.Tx, b Booking, leadID, contactID uuid.UUID, now time.Time) (repository.Activity, error) {
	minutes := b.roundedMinutes()
	outcome := transport.OutcomePositive
	bookingID := b.ID

	return tx.CreateActivity(ctx, repository.Activity{
		LeadID:          leadID,
		ContactID:       &contactID,
		Type:            transport.ActivityTypeMeeting,
		Subject:         activitySubject(b),
		Description:     activityDescription(b, s.loc),
		ActivityDate:    b.ScheduledAt,
		DurationMinutes: &minutes,
		Outcome:         &outcome,
		Metadata: repository.ActivityMetadata{
			BookingID:  b.ID,
			MeetingURL: b.MeetingURL,
			Source:     transport.SourceBookMe,
			EventType:  b.EventType,
		},
		BookingID: &bookingID,
		CreatedAt: now,
	})
}

// UpdateBooking applies a cancellation or reschedule notice to the activity
// recorded for the booking. Cancelling also cancels every todo task of the lead.
// Repeating a notice that is already applied changes nothing.
func (s *Service) UpdateBooking(ctx context.Context, req transport.UpdateBookingRequest, raw []byte) (transport.UpdateBookingResponse, error) {
	bookingID := strings.TrimSpace(req.BookingID)
	if bookingID == "" {
		return transport.UpdateBookingResponse{}, invalidField("bookingId", "is required")
	}

	var newDate time.Time
	if req.Status == transport.BookingRescheduled {
		parsed, err := validator.ParseISODateTime(req.NewScheduledDate, s.loc)
		if err != nil {
			return transport.UpdateBookingResponse{}, invalidField("newScheduledDate", "must be an ISO 8601 datetime")
		}
		newDate = parsed
	}

	now := s.now()
	var (
		activity  repository.Activity
		previous  time.Time
		cancelled int64
		changed   bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		found, err := tx.FindActivityByBookingID(ctx, bookingID)
		if err != nil {
			return err
		}
		if found == nil {
			return apperr.NotFound("Booking not found")
		}
		activity = *found
		previous = activity.ActivityDate

		switch req.Status {
		case transport.BookingCancelled:
			if isCancelled(activity) {
				return nil
			}
			outcome := transport.OutcomeNegative
			activity.Subject += cancelledSuffix
			activity.Description += cancellationNote(now)
			activity.Outcome = &outcome
			activity.UpdatedAt = now
			if err := tx.UpdateActivity(ctx, activity); err != nil {
				return err
			}
			cancelled, err = tx.CancelOpenTasks(ctx, activity.LeadID, now)
			if err != nil {
				return err
			}
		case transport.BookingRescheduled:
			if activity.ActivityDate.Equal(newDate) {
				return nil
			}
			// Task due dates stay as they are; there is no agreed rule for shifting them.
			activity.ActivityDate = newDate
			activity.Description += rescheduleNote(newDate, s.loc)
			activity.UpdatedAt = now
			if err := tx.UpdateActivity(ctx, activity); err != nil {
				return err
			}
		default:
			return apperr.Validation("Invalid payload").WithDetails(validator.FieldErrors{"status": "must be one of: cancelled, rescheduled"})
		}
		changed = true
		return nil
	})
	if err != nil {
		return transport.UpdateBookingResponse{}, err
	}

	log := s.log.WithContext(ctx)
	if !changed {
		log.Info("bookings: update already applied", "bookingId", bookingID, "status", req.Status)
		return transport.UpdateBookingResponse{Success: true}, nil
	}

	switch req.Status {
	case transport.BookingCancelled:
		log.Info("bookings: booking cancelled", "bookingId", bookingID, "leadId", activity.LeadID, "cancelledTasks", cancelled)
		s.publish(ctx, events.BookingCancelled{
			BaseEvent:      events.NewBaseEvent(),
			BookingID:      bookingID,
			Integration:    integration(ctx),
			ActivityID:     activity.ID,
			LeadID:         activity.LeadID,
			CancelledTasks: cancelled,
			Payload:        rawJSON(raw),
		})
	case transport.BookingRescheduled:
		log.Info("bookings: booking rescheduled", "bookingId", bookingID, "leadId", activity.LeadID, "newDate", newDate)
		s.publish(ctx, events.BookingRescheduled{
			BaseEvent:        events.NewBaseEvent(),
			BookingID:        bookingID,
			Integration:      integration(ctx),
			ActivityID:       activity.ID,
			LeadID:           activity.LeadID,
			PreviousDate:     previous,
			NewScheduledDate: newDate,
			Payload:          rawJSON(raw),
		})
	}

	return transport.UpdateBookingResponse{Success: true}, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func isCancelled(a repository.Activity) bool {
	return a.Outcome != nil && *a.Outcome == transport.OutcomeNegative && strings.HasSuffix(a.Subject, cancelledSuffix)
}

func bookingTags(b Booking) []string {
	if b.EventType == tagBookMe {
		return []string{tagBookMe}
	}
	return []string{tagBookMe, b.EventType}
}

func integration(ctx context.Context) string {
	name, _ := ctx.Value(logger.IntegrationKey).(string)
	return name
}

func rawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return json.RawMessage(raw)
}

func taskIDs(tasks []repository.Task) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func toSyncResponse(res syncResult) transport.BookingSyncResponse {
	tasks := make([]transport.TaskSummary, 0, len(res.tasks))
	for _, t := range res.tasks {
		summary := transport.TaskSummary{ID: t.ID, Title: t.Title, Priority: t.Priority}
		if t.DueDate != nil {
			summary.DueDate = *t.DueDate
		}
		tasks = append(tasks, summary)
	}

	activity := transport.ActivitySummary{ID: res.activity.ID, ScheduledDate: res.activity.ActivityDate}
	if res.activity.Outcome != nil {
		activity.Outcome = *res.activity.Outcome
	}

	return transport.BookingSyncResponse{
		Success: true,
		Lead: transport.LeadSummary{
			ID:             res.lead.ID,
			Title:          res.lead.Title,
			Stage:          res.lead.Stage,
			EstimatedValue: res.lead.EstimatedValue,
			LeadScore:      res.lead.LeadScore,
		},
		Contact: transport.ContactSummary{
			ID:    res.contact.ID,
			Email: res.contact.Email,
			Name:  res.contact.FullName(),
		},
		Activity: activity,
		Tasks:    tasks,
	}
}
