// Package crmsync delivers booking notifications from the booking tool to the CRM webhook.
package crmsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/config"
)

const (
	incomingPath        = "/api/bookings/incoming"
	headerWebhookSecret = "X-Webhook-Secret"
	maxErrorBody        = 2048
)

// DeliveryError is returned when the CRM did not accept a notification.
// Retryable is true for 5xx responses and transport failures.
type DeliveryError struct {
	Op         string
	StatusCode int
	Body       string
	Retryable  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("crmsync %s: %v", e.Op, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("crmsync %s: crm responded %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("crmsync %s: crm responded %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth delivering again later.
func IsRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// SendResult is the outcome of a delivered booking. Duplicate is set when the
// CRM had already ingested the booking id; Response is nil in that case.
type SendResult struct {
	Response  *transport.BookingSyncResponse
	Duplicate bool
}

// Client calls the CRM booking webhook.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// NewClient creates a client for the configured CRM.
func NewClient(cfg config.CRMSyncConfig) *Client {
	return NewClientWithHTTP(cfg.GetCRMWebhookURL(), cfg.GetCRMWebhookSecret(), &http.Client{Timeout: cfg.GetCRMSyncTimeout()})
}

// NewClientWithHTTP creates a client using hc for transport.
func NewClientWithHTTP(baseURL, secret string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, secret: secret, http: hc}
}

// SendBooking posts a new booking. A 409 means the CRM already has it and
// counts as delivered.
func (c *Client) SendBooking(ctx context.Context, payload transport.BookingPayload) (SendResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, payload)
	if err != nil {
		return SendResult{}, &DeliveryError{Op: "send booking", Retryable: true, Err: err}
	}

	switch {
	case status == http.StatusConflict:
		return SendResult{Duplicate: true}, nil
	case status >= 200 && status < 300:
		var resp transport.BookingSyncResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return SendResult{}, &DeliveryError{Op: "send booking", StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
		}
		return SendResult{Response: &resp}, nil
	default:
		return SendResult{}, statusError("send booking", status, body)
	}
}

// UpdateBooking sends a cancellation or reschedule notice.
func (c *Client) UpdateBooking(ctx context.Context, req transport.UpdateBookingRequest) error {
	status, body, err := c.do(ctx, http.MethodPatch, req)
	if err != nil {
		return &DeliveryError{Op: "update booking", Retryable: true, Err: err}
	}
	if status >= 200 && status < 300 {
		return nil
	}
	return statusError("update booking", status, body)
}

func (c *Client) do(ctx context.Context, method string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+incomingPath, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerWebhookSecret, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func statusError(op string, status int, body []byte) *DeliveryError {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &DeliveryError{
		Op:         op,
		StatusCode: status,
		Body:       text,
		Retryable:  status >= 500 || status == http.StatusTooManyRequests,
	}
}
