package service

import (
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
)

// TaskPlan is a follow-up task to create for a booking.
type TaskPlan struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    transport.TaskPriority
}

type plannedTask struct {
	plan TaskPlan
	// futureOnly drops the task when its due date is not after now.
	futureOnly bool
}

// PlanFollowUps derives the follow-up tasks for a booking. Wall-clock due times
// are computed in loc. Tasks marked future-only are dropped when their due date
// is not strictly after now; the closing follow-up of each schedule is always kept.
// Unknown event types get no tasks.
func PlanFollowUps(b Booking, now time.Time, loc *time.Location) []TaskPlan {
	if loc == nil {
		loc = time.UTC
	}
	meeting := b.ScheduledAt.In(loc)

	var candidates []plannedTask
	switch b.EventType {
	case EventTypeWorkshop:
		candidates = []plannedTask{
			{futureOnly: true, plan: TaskPlan{
				Title:       "Send workshop preparation info",
				Description: workshopPrepDescription(b.Email),
				DueDate:     atClock(meeting, -7, 9, 0),
				Priority:    transport.TaskPriorityHigh,
			}},
			{futureOnly: true, plan: TaskPlan{
				Title:       "Send workshop reminder",
				Description: workshopReminderDescription,
				DueDate:     atClock(meeting, -1, 14, 0),
				Priority:    transport.TaskPriorityMedium,
			}},
			{plan: TaskPlan{
				Title:       "Workshop follow-up",
				Description: workshopFollowUpDescription,
				DueDate:     atClock(meeting, 1, 10, 0),
				Priority:    transport.TaskPriorityMedium,
			}},
		}
	case EventTypeConsultation:
		candidates = []plannedTask{
			{futureOnly: true, plan: TaskPlan{
				Title:       "Send consultation reminder",
				Description: consultationReminderDescription,
				DueDate:     atClock(meeting, -1, 14, 0),
				Priority:    transport.TaskPriorityMedium,
			}},
			{futureOnly: true, plan: TaskPlan{
				Title:       "Prepare for consultation",
				Description: consultationPrepDescription(b.Company),
				DueDate:     meeting.Add(-time.Hour),
				Priority:    transport.TaskPriorityHigh,
			}},
			{plan: TaskPlan{
				Title:       "Send consultation summary",
				Description: consultationSummaryDescription,
				DueDate:     meeting.Add(3 * time.Hour),
				Priority:    transport.TaskPriorityHigh,
			}},
		}
	default:
		return nil
	}

	plans := make([]TaskPlan, 0, len(candidates))
	for _, c := range candidates {
		if c.futureOnly && !c.plan.DueDate.After(now) {
			continue
		}
		plans = append(plans, c.plan)
	}
	return plans
}

// atClock returns hour:minute local time on the day dayOffset days from t's calendar day.
func atClock(t time.Time, dayOffset, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+dayOffset, hour, minute, 0, 0, t.Location())
}
