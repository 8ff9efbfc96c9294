package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/crmsync"
	"github.com/mfeltenmark/freelance-crm/internal/email"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 6 * time.Hour
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	crm    crmsync.Deliverer
	alerts email.Sender
	log    *logger.Logger
}

func NewWorker(cfg QueueConfig, crm crmsync.Deliverer, alerts email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	w := newWorker(crm, alerts, log)
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency:    concurrency,
		Queues:         map[string]int{queueName(cfg): 1},
		RetryDelayFunc: RetryDelay,
		ErrorHandler:   asynq.ErrorHandlerFunc(w.handleError),
	})
	return w, nil
}

func newWorker(crm crmsync.Deliverer, alerts email.Sender, log *logger.Logger) *Worker {
	if alerts == nil {
		alerts = email.NoopSender{}
	}
	w := &Worker{
		mux:    asynq.NewServeMux(),
		crm:    crm,
		alerts: alerts,
		log:    log,
	}
	w.mux.HandleFunc(TaskBookingCreate, w.handleBookingCreate)
	w.mux.HandleFunc(TaskBookingUpdate, w.handleBookingUpdate)
	return w
}

// RetryDelay doubles from 30 seconds per attempt and is capped at six hours.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 16 {
		return maxRetryDelay
	}
	d := baseRetryDelay << n
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleBookingCreate(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingCreatePayload(task)
	if err != nil {
		return fmt.Errorf("decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}

	res, err := w.crm.SendBooking(ctx, payload)
	if err != nil {
		return classify(err)
	}
	w.log.Info("crmsync: queued booking delivered", "bookingId", payload.BookingID, "duplicate", res.Duplicate)
	return nil
}

func (w *Worker) handleBookingUpdate(ctx context.Context, task *asynq.Task) error {
	req, err := ParseBookingUpdatePayload(task)
	if err != nil {
		return fmt.Errorf("decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}

	if err := w.crm.UpdateBooking(ctx, req); err != nil {
		return classify(err)
	}
	w.log.Info("crmsync: queued update delivered", "bookingId", req.BookingID, "status", req.Status)
	return nil
}

// classify stops asynq from retrying errors the CRM will never accept.
func classify(err error) error {
	if crmsync.IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

type taskMeta struct {
	id       string
	queue    string
	retried  int
	maxRetry int
}

func (w *Worker) handleError(ctx context.Context, task *asynq.Task, err error) {
	meta := taskMeta{}
	meta.id, _ = asynq.GetTaskID(ctx)
	meta.queue, _ = asynq.GetQueueName(ctx)
	meta.retried, _ = asynq.GetRetryCount(ctx)
	meta.maxRetry, _ = asynq.GetMaxRetry(ctx)
	w.reportFailure(ctx, task, err, meta)
}

// reportFailure logs every failed attempt and alerts the operator once the
// task is about to be archived.
func (w *Worker) reportFailure(ctx context.Context, task *asynq.Task, err error, meta taskMeta) {
	final := errors.Is(err, asynq.SkipRetry) || meta.retried >= meta.maxRetry
	bookingID := bookingIDOf(task)

	if !final {
		w.log.Warn("crmsync: delivery attempt failed",
			"task", task.Type(), "bookingId", bookingID, "retried", meta.retried, "maxRetry", meta.maxRetry, "error", err)
		return
	}

	w.log.Error("crmsync: delivery moved to dead letter queue",
		"task", task.Type(), "bookingId", bookingID, "retried", meta.retried, "error", err)

	alert := email.DeadLetterAlert{
		TaskType:  task.Type(),
		TaskID:    meta.id,
		BookingID: bookingID,
		Queue:     meta.queue,
		Retried:   meta.retried,
		MaxRetry:  meta.maxRetry,
		LastError: err.Error(),
		Payload:   string(task.Payload()),
		FailedAt:  time.Now(),
	}
	if aerr := w.alerts.SendDeadLetterAlert(context.WithoutCancel(ctx), alert); aerr != nil {
		w.log.Error("crmsync: dead letter alert failed", "bookingId", bookingID, "error", aerr)
	}
}

func bookingIDOf(task *asynq.Task) string {
	switch task.Type() {
	case TaskBookingCreate:
		if p, err := ParseBookingCreatePayload(task); err == nil {
			return p.BookingID
		}
	case TaskBookingUpdate:
		if r, err := ParseBookingUpdatePayload(task); err == nil {
			return r.BookingID
		}
	}
	return ""
}
