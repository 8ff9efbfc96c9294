package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// FirstRetryDelay is how long a failed delivery waits in the queue before its first retry.
const FirstRetryDelay = 5 * time.Minute

// QueueConfig combines the broker settings with the retry budget.
type QueueConfig interface {
	config.SchedulerConfig
	GetCRMSyncMaxRetry() int
}

// Client enqueues failed CRM deliveries for retry.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	maxRetry  int
}

func NewClient(cfg QueueConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queueName(cfg),
		maxRetry:  cfg.GetCRMSyncMaxRetry(),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// EnqueueBookingCreate queues a new booking. A copy already waiting or being
// delivered is left as it is; a dead-lettered copy is replaced.
func (c *Client) EnqueueBookingCreate(ctx context.Context, payload transport.BookingPayload) error {
	task, err := NewBookingCreateTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, BookingTaskID(TaskBookingCreate, payload.BookingID, ""), false)
}

// EnqueueBookingUpdate queues a cancellation or reschedule notice. The newest
// notice for a booking and status replaces one still waiting in the queue, so
// a second reschedule carries its own date to the CRM.
func (c *Client) EnqueueBookingUpdate(ctx context.Context, req transport.UpdateBookingRequest) error {
	task, err := NewBookingUpdateTask(req)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, BookingTaskID(TaskBookingUpdate, req.BookingID, req.Status), true)
}

// enqueue resolves a task id conflict by the state of the task holding the id.
// Archived and completed tasks never count as delivered.
func (c *Client) enqueue(ctx context.Context, task *asynq.Task, taskID string, replace bool) error {
	if c == nil || c.client == nil {
		return nil
	}

	err := c.submit(ctx, task, taskID)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	info, err := c.inspector.GetTaskInfo(c.queue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return c.submit(ctx, task, taskID)
	}
	if err != nil {
		return fmt.Errorf("inspect task %s: %w", taskID, err)
	}

	switch info.State {
	case asynq.TaskStateActive:
		if !replace {
			return nil
		}
		// The running copy cannot be removed; queue the newer notice behind it.
		return c.submit(ctx, task, taskID+":"+strconv.FormatInt(time.Now().UnixNano(), 36))
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		if !replace {
			return nil
		}
	}

	if err := c.inspector.DeleteTask(c.queue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return fmt.Errorf("replace task %s: %w", taskID, err)
	}
	return c.submit(ctx, task, taskID)
}

func (c *Client) submit(ctx context.Context, task *asynq.Task, taskID string) error {
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(taskID),
		asynq.MaxRetry(c.maxRetry),
		asynq.ProcessIn(FirstRetryDelay),
		asynq.Queue(c.queue),
	)
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
