package scheduler

import (
	"encoding/json"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"

	"github.com/hibiken/asynq"
)

const TaskBookingCreate = "crmsync:booking.create"

const TaskBookingUpdate = "crmsync:booking.update"

// BookingTaskID identifies the queued delivery of one notification so a
// booking is never queued twice for the same change.
func BookingTaskID(taskType, bookingID string, status transport.BookingUpdateStatus) string {
	id := taskType + ":" + bookingID
	if status != "" {
		id += ":" + string(status)
	}
	return id
}

func NewBookingCreateTask(payload transport.BookingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingCreate, data), nil
}

func ParseBookingCreatePayload(task *asynq.Task) (transport.BookingPayload, error) {
	var payload transport.BookingPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return transport.BookingPayload{}, err
	}
	return payload, nil
}

func NewBookingUpdateTask(req transport.UpdateBookingRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingUpdate, data), nil
}

func ParseBookingUpdatePayload(task *asynq.Task) (transport.UpdateBookingRequest, error) {
	var req transport.UpdateBookingRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return transport.UpdateBookingRequest{}, err
	}
	return req, nil
}
