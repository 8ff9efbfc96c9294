package crmsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/stretchr/testify/assert"
)

type stubDeliverer struct {
	err     error
	block   chan struct{}
	mu      sync.Mutex
	sent    int
	updated int
}

func (d *stubDeliverer) SendBooking(ctx context.Context, _ transport.BookingPayload) (SendResult, error) {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return SendResult{}, &DeliveryError{Op: "send booking", Retryable: true, Err: ctx.Err()}
		}
	}
	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
	return SendResult{}, d.err
}

func (d *stubDeliverer) UpdateBooking(context.Context, transport.UpdateBookingRequest) error {
	d.mu.Lock()
	d.updated++
	d.mu.Unlock()
	return d.err
}

type stubQueue struct {
	mu      sync.Mutex
	creates []string
	updates []string
}

func (q *stubQueue) EnqueueBookingCreate(_ context.Context, p transport.BookingPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.creates = append(q.creates, p.BookingID)
	return nil
}

func (q *stubQueue) EnqueueBookingUpdate(_ context.Context, r transport.UpdateBookingRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updates = append(q.updates, r.BookingID)
	return nil
}

func TestSyncerDoesNotBlockCaller(t *testing.T) {
	client := &stubDeliverer{block: make(chan struct{})}
	s := NewSyncer(client, &stubQueue{}, time.Minute, logger.Discard())

	done := make(chan struct{})
	go func() {
		s.SyncBooking(context.Background(), transport.BookingPayload{BookingID: "bk-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SyncBooking blocked on delivery")
	}
	close(client.block)
	s.Wait()
	assert.Equal(t, 1, client.sent)
}

func TestSyncerQueuesRetryableFailures(t *testing.T) {
	queue := &stubQueue{}
	s := NewSyncer(&stubDeliverer{err: &DeliveryError{StatusCode: 503, Retryable: true}}, queue, time.Second, logger.Discard())

	s.SyncBooking(context.Background(), transport.BookingPayload{BookingID: "bk-1"})
	s.UpdateBooking(context.Background(), CancelRequest("bk-2"))
	s.Wait()

	assert.Equal(t, []string{"bk-1"}, queue.creates)
	assert.Equal(t, []string{"bk-2"}, queue.updates)
}

func TestSyncerDropsPermanentFailures(t *testing.T) {
	queue := &stubQueue{}
	s := NewSyncer(&stubDeliverer{err: &DeliveryError{StatusCode: 400}}, queue, time.Second, logger.Discard())

	s.SyncBooking(context.Background(), transport.BookingPayload{BookingID: "bk-1"})
	s.Wait()

	assert.Empty(t, queue.creates)
}

func TestSyncerOutlivesCallerContext(t *testing.T) {
	client := &stubDeliverer{}
	s := NewSyncer(client, nil, time.Second, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.SyncBooking(ctx, transport.BookingPayload{BookingID: "bk-1"})
	s.Wait()

	assert.Equal(t, 1, client.sent)
}

func TestSyncerWithoutQueueOnlyLogs(t *testing.T) {
	s := NewSyncer(&stubDeliverer{err: errors.New("dial tcp: refused")}, nil, time.Second, logger.Discard())
	s.SyncBooking(context.Background(), transport.BookingPayload{BookingID: "bk-1"})
	s.Wait()
}
