// Package handler exposes the booking webhook over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/platform/httpkit"
	"github.com/mfeltenmark/freelance-crm/platform/validator"

	"github.com/gin-gonic/gin"
)

const errInvalidPayload = "Invalid payload"

// BookingService is the part of the booking service the handler drives.
type BookingService interface {
	ProcessBooking(ctx context.Context, payload transport.BookingPayload, raw []byte) (transport.BookingSyncResponse, error)
	UpdateBooking(ctx context.Context, req transport.UpdateBookingRequest, raw []byte) (transport.UpdateBookingResponse, error)
}

// Handler handles booking webhook requests.
type Handler struct {
	svc BookingService
	val *validator.Validator
}

// New creates a booking webhook handler.
func New(svc BookingService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleIncoming ingests a new booking.
// POST /api/bookings/incoming
func (h *Handler) HandleIncoming(c *gin.Context) {
	var req transport.BookingPayload
	raw, ok := h.bindAndValidate(c, &req)
	if !ok {
		return
	}

	resp, err := h.svc.ProcessBooking(c.Request.Context(), req, raw)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// HandleUpdate applies a cancellation or reschedule notice.
// PATCH /api/bookings/incoming
func (h *Handler) HandleUpdate(c *gin.Context) {
	var req transport.UpdateBookingRequest
	raw, ok := h.bindAndValidate(c, &req)
	if !ok {
		return
	}

	resp, err := h.svc.UpdateBooking(c.Request.Context(), req, raw)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// bindAndValidate decodes the body into req and reports every failing field,
// type mismatches and validation rules alike. The raw body is returned so it
// can travel with published events.
func (h *Handler) bindAndValidate(c *gin.Context, req any) ([]byte, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidPayload, validator.FieldErrors{"body": "could not be read"})
		return nil, false
	}

	details, err := decodeFields(raw, req)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidPayload, validator.FieldErrors{"body": "malformed JSON"})
		return nil, false
	}

	if err := h.val.Struct(req); err != nil {
		fields := validator.Fields(err)
		if fields == nil {
			fields = validator.FieldErrors{"body": err.Error()}
		}
		// A mistyped field was left empty; its type message says more than "is required".
		for name, msg := range fields {
			if _, seen := details[name]; !seen {
				details[name] = msg
			}
		}
	}

	if len(details) > 0 {
		httpkit.Error(c, http.StatusBadRequest, errInvalidPayload, details)
		return nil, false
	}
	return raw, true
}

// decodeFields fills the struct req points to one json field at a time, so a
// type mismatch in one field does not hide the others. The error is non-nil
// only when raw is not a JSON object.
func decodeFields(raw []byte, req any) (validator.FieldErrors, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	details := validator.FieldErrors{}
	v := reflect.ValueOf(req).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		value, ok := lookupField(fields, name)
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, v.Field(i).Addr().Interface()); err != nil {
			details[name] = typeMessage(err)
		}
	}
	return details, nil
}

// lookupField matches keys the way encoding/json does: exact first, then case-insensitive.
func lookupField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if value, ok := fields[name]; ok {
		return value, true
	}
	for key, value := range fields {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

func typeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return "is invalid"
	}
	switch typeErr.Type.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int32, reflect.Int64:
		return "must be a number"
	case reflect.Bool:
		return "must be a boolean"
	default:
		return "must be a " + typeErr.Type.String()
	}
}
