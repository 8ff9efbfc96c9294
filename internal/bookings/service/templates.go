package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	activityDateLayout   = "Monday, 2 January 2006 at 15:04 MST"
	rescheduleDateLayout = "2006-01-02 15:04 MST"
	cancelledSuffix      = " [CANCELLED]"
)

const workshopReminderDescription = `Quick reminder email with:
- Tomorrow's workshop details
- Meeting link
- "Looking forward to seeing you!"`

const workshopFollowUpDescription = `Send thank you email with:
- Thank you for participating
- Key takeaways recap
- Additional resources
- Feedback survey link
- Discuss next steps / continued engagement

Check: Did they seem interested in further consulting?`

const consultationReminderDescription = "Quick reminder with meeting link and agenda"

const consultationSummaryDescription = `Send recap email with:
- Thank you for your time
- Key discussion points
- Action items (theirs and yours)
- Next steps
- Proposal (if discussed)
- When you'll follow up

Update lead stage based on interest level!`

func workshopPrepDescription(email string) string {
	return fmt.Sprintf(`Send email to %s with:
- Workshop agenda
- Materials needed
- Pre-work (if any)
- Logistics (link, time, duration)
- Contact info for questions

Template: Use "Workshop Prep" email template`, email)
}

func consultationPrepDescription(company string) string {
	background := "Their company/background"
	if company != "" {
		background = company + " (company/background)"
	}
	return `Review:
- ` + background + `
- Previous communication
- LinkedIn profile
- Potential challenges they might have

Have ready:
- Case studies
- Pricing info
- Availability for follow-up`
}

func leadTitle(b Booking) string {
	if b.HasCompany() {
		return b.EventType + " - " + b.Company
	}
	return b.EventType + " - " + b.FullName()
}

func leadDescription(b Booking) string {
	desc := "Booked via BookMe: " + b.EventType
	if b.Notes != "" {
		desc += "\n\nCustomer notes: " + b.Notes
	}
	return desc
}

func activitySubject(b Booking) string {
	return b.EventType + " - Scheduled via BookMe"
}

func activityDescription(b Booking, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("Booking Details:\n")
	sb.WriteString("- Type: " + b.EventType + "\n")
	sb.WriteString("- Date: " + b.ScheduledAt.In(loc).Format(activityDateLayout) + "\n")
	sb.WriteString("- Duration: " + strconv.FormatFloat(b.DurationMinutes, 'f', -1, 64) + " minutes\n")
	if b.MeetingURL != "" {
		sb.WriteString("- Meeting URL: " + b.MeetingURL + "\n")
	}
	if b.HasCompany() {
		sb.WriteString("- Company: " + b.Company + "\n")
	}
	if b.Notes != "" {
		sb.WriteString("\nCustomer notes:\n" + b.Notes + "\n")
	}
	sb.WriteString("\nSource: BookMe (Booking ID: " + b.ID + ")")
	return sb.String()
}

func cancellationNote(at time.Time) string {
	return "\n\nCANCELLED on " + at.UTC().Format(time.RFC3339)
}

func rescheduleNote(newDate time.Time, loc *time.Location) string {
	return "\n\nRESCHEDULED to " + newDate.In(loc).Format(rescheduleDateLayout)
}
