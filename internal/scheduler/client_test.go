package scheduler

import (
	"context"
	"testing"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		RedisURL:        "redis://" + mr.Addr(),
		AsynqQueueName:  "crmsync",
		CRMSyncMaxRetry: 8,
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })
	return client, inspector
}

func TestEnqueueBookingCreateSchedulesDelayedRetry(t *testing.T) {
	client, inspector := setupQueue(t)

	require.NoError(t, client.EnqueueBookingCreate(context.Background(), transport.BookingPayload{BookingID: "bk-1"}))

	info, err := inspector.GetTaskInfo("crmsync", "crmsync:booking.create:bk-1")
	require.NoError(t, err)
	assert.Equal(t, TaskBookingCreate, info.Type)
	assert.Equal(t, asynq.TaskStateScheduled, info.State)
	assert.Equal(t, 8, info.MaxRetry)
}

func TestEnqueueDeduplicatesByBooking(t *testing.T) {
	client, inspector := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, client.EnqueueBookingCreate(ctx, transport.BookingPayload{BookingID: "bk-1"}))
	require.NoError(t, client.EnqueueBookingCreate(ctx, transport.BookingPayload{BookingID: "bk-1"}))
	require.NoError(t, client.EnqueueBookingUpdate(ctx, transport.UpdateBookingRequest{BookingID: "bk-1", Status: transport.BookingCancelled}))

	tasks, err := inspector.ListScheduledTasks("crmsync")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestEnqueueRescheduleReplacesQueuedNotice(t *testing.T) {
	client, inspector := setupQueue(t)
	ctx := context.Background()

	first := transport.UpdateBookingRequest{BookingID: "bk-1", Status: transport.BookingRescheduled, NewScheduledDate: "2026-06-01T10:00:00Z"}
	second := transport.UpdateBookingRequest{BookingID: "bk-1", Status: transport.BookingRescheduled, NewScheduledDate: "2026-06-08T10:00:00Z"}
	require.NoError(t, client.EnqueueBookingUpdate(ctx, first))
	require.NoError(t, client.EnqueueBookingUpdate(ctx, second))

	tasks, err := inspector.ListScheduledTasks("crmsync")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	queued, err := ParseBookingUpdatePayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	require.NoError(t, err)
	assert.Equal(t, "2026-06-08T10:00:00Z", queued.NewScheduledDate)
}

func TestEnqueueReplacesArchivedTask(t *testing.T) {
	client, inspector := setupQueue(t)
	ctx := context.Background()
	id := BookingTaskID(TaskBookingCreate, "bk-1", "")

	require.NoError(t, client.EnqueueBookingCreate(ctx, transport.BookingPayload{BookingID: "bk-1"}))
	require.NoError(t, inspector.ArchiveTask("crmsync", id))

	require.NoError(t, client.EnqueueBookingCreate(ctx, transport.BookingPayload{BookingID: "bk-1"}))

	info, err := inspector.GetTaskInfo("crmsync", id)
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStateScheduled, info.State)

	archived, err := inspector.ListArchivedTasks("crmsync")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestBookingTaskID(t *testing.T) {
	assert.Equal(t, "crmsync:booking.create:bk-1", BookingTaskID(TaskBookingCreate, "bk-1", ""))
	assert.Equal(t, "crmsync:booking.update:bk-1:rescheduled", BookingTaskID(TaskBookingUpdate, "bk-1", transport.BookingRescheduled))
}

func TestNewClientRequiresRedis(t *testing.T) {
	_, err := NewClient(&config.Config{})
	assert.Error(t, err)
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt("rediss://:pw@cache.example.com:6380/2", true)
	require.NoError(t, err)
	assert.Equal(t, "cache.example.com:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)
}
