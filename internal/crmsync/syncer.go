package crmsync

import (
	"context"
	"sync"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/logger"
)

// Deliverer sends notifications to the CRM. *Client satisfies it.
type Deliverer interface {
	SendBooking(ctx context.Context, payload transport.BookingPayload) (SendResult, error)
	UpdateBooking(ctx context.Context, req transport.UpdateBookingRequest) error
}

// Enqueuer hands a failed notification to the durable retry queue.
type Enqueuer interface {
	EnqueueBookingCreate(ctx context.Context, payload transport.BookingPayload) error
	EnqueueBookingUpdate(ctx context.Context, req transport.UpdateBookingRequest) error
}

// Syncer notifies the CRM without blocking the booking flow. Each call runs in
// its own goroutine; retryable failures go to the queue, permanent ones are logged.
type Syncer struct {
	client  Deliverer
	queue   Enqueuer
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
}

// NewSyncer creates a syncer. queue may be nil, in which case failures are only logged.
func NewSyncer(client Deliverer, queue Enqueuer, timeout time.Duration, log *logger.Logger) *Syncer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Syncer{client: client, queue: queue, timeout: timeout, log: log}
}

// SyncBooking delivers a new booking in the background.
func (s *Syncer) SyncBooking(ctx context.Context, payload transport.BookingPayload) {
	s.run(ctx, payload.BookingID, "create", func(ctx context.Context) error {
		res, err := s.client.SendBooking(ctx, payload)
		if err == nil && res.Duplicate {
			s.log.WithContext(ctx).Info("crmsync: booking already in crm", "bookingId", payload.BookingID)
		}
		return err
	}, func(ctx context.Context) error {
		return s.queue.EnqueueBookingCreate(ctx, payload)
	})
}

// UpdateBooking delivers a cancellation or reschedule notice in the background.
func (s *Syncer) UpdateBooking(ctx context.Context, req transport.UpdateBookingRequest) {
	s.run(ctx, req.BookingID, "update", func(ctx context.Context) error {
		return s.client.UpdateBooking(ctx, req)
	}, func(ctx context.Context) error {
		return s.queue.EnqueueBookingUpdate(ctx, req)
	})
}

// Wait blocks until every background delivery has finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) run(ctx context.Context, bookingID, kind string, deliver, enqueue func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := s.log.WithContext(detached)

		callCtx, cancel := context.WithTimeout(detached, s.timeout)
		err := deliver(callCtx)
		cancel()
		if err == nil {
			log.Info("crmsync: delivered", "bookingId", bookingID, "kind", kind)
			return
		}

		if !IsRetryable(err) || s.queue == nil {
			log.Error("crmsync: delivery failed", "bookingId", bookingID, "kind", kind, "error", err)
			return
		}

		if qerr := enqueue(detached); qerr != nil {
			log.Error("crmsync: could not queue retry", "bookingId", bookingID, "kind", kind, "error", err, "queueError", qerr)
			return
		}
		log.Warn("crmsync: delivery failed, retry queued", "bookingId", bookingID, "kind", kind, "error", err)
	}()
}
