package email

import (
	"bytes"
	"fmt"
	"text/template"
)

const subjectDeadLetterFmt = "[crm-sync] booking %s could not be delivered"

var deadLetterTemplate = template.Must(template.New("dead_letter").Parse(`A booking notification was moved to the dead-letter queue and will not be retried.

Booking ID: {{.BookingID}}
Task:       {{.TaskType}} ({{.TaskID}})
Queue:      {{.Queue}}
Attempts:   {{.Retried}} of {{.MaxRetry}} retries
Failed at:  {{.FailedAt.UTC.Format "2006-01-02 15:04:05 MST"}}

Last error:
{{.LastError}}

Payload:
{{.Payload}}

Inspect or requeue the task with the asynq CLI once the CRM accepts it again.
`))

func renderDeadLetterAlert(alert DeadLetterAlert) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := deadLetterTemplate.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("execute dead letter template: %w", err)
	}
	return fmt.Sprintf(subjectDeadLetterFmt, alert.BookingID), buf.String(), nil
}
