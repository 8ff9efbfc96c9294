package bookings

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mfeltenmark/freelance-crm/internal/adapters/storage"
	"github.com/mfeltenmark/freelance-crm/internal/events"
	"github.com/mfeltenmark/freelance-crm/platform/logger"

	"github.com/google/uuid"
)

// PayloadArchive keeps the raw body of every applied booking notification in
// object storage. Failures are logged and never reach the webhook caller.
type PayloadArchive struct {
	store  storage.ObjectStore
	bucket string
	log    *logger.Logger
}

// NewPayloadArchive creates an archive writing to bucket.
func NewPayloadArchive(store storage.ObjectStore, bucket string, log *logger.Logger) *PayloadArchive {
	return &PayloadArchive{store: store, bucket: bucket, log: log}
}

// Subscribe registers the archive for every booking event.
func (a *PayloadArchive) Subscribe(bus events.Bus) {
	for _, name := range []string{
		events.BookingSynced{}.EventName(),
		events.BookingCancelled{}.EventName(),
		events.BookingRescheduled{}.EventName(),
	} {
		bus.Subscribe(name, a)
	}
}

// Handle implements events.Handler.
func (a *PayloadArchive) Handle(ctx context.Context, event events.Event) error {
	var (
		bookingID string
		payload   []byte
	)
	switch e := event.(type) {
	case events.BookingSynced:
		bookingID, payload = e.BookingID, e.Payload
	case events.BookingCancelled:
		bookingID, payload = e.BookingID, e.Payload
	case events.BookingRescheduled:
		bookingID, payload = e.BookingID, e.Payload
	default:
		return nil
	}
	if len(payload) == 0 {
		return nil
	}

	key := ArchiveKey(bookingID, event)
	if err := a.store.PutObject(ctx, a.bucket, key, "application/json", bytes.NewReader(payload), int64(len(payload))); err != nil {
		a.log.WithContext(ctx).Warn("bookings: payload archive failed", "bookingId", bookingID, "key", key, "error", err)
		return nil
	}
	a.log.WithContext(ctx).Debug("bookings: payload archived", "bookingId", bookingID, "key", key)
	return nil
}

// ArchiveKey is bookings/<bookingId>/<event>-<unixnano>[-<eventId>].json. The
// booking id comes from the booking tool, so it is escaped into a single path
// segment.
func ArchiveKey(bookingID string, event events.Event) string {
	segment := url.PathEscape(bookingID)
	if segment == "." || segment == ".." || segment == "" {
		segment = strings.ReplaceAll(segment, ".", "%2E") + "_"
	}

	name := fmt.Sprintf("%s-%d", event.EventName(), event.OccurredAt().UnixNano())
	if identified, ok := event.(interface{ EventID() uuid.UUID }); ok && identified.EventID() != uuid.Nil {
		name += "-" + identified.EventID().String()
	}
	return "bookings/" + segment + "/" + name + ".json"
}
