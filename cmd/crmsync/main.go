// Command crmsync sends booking notifications to the CRM webhook from the
// command line, the same way the booking tool does.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfeltenmark/freelance-crm/internal/bookings/transport"
	"github.com/mfeltenmark/freelance-crm/internal/crmsync"
	"github.com/mfeltenmark/freelance-crm/internal/scheduler"
	"github.com/mfeltenmark/freelance-crm/platform/config"
	"github.com/mfeltenmark/freelance-crm/platform/logger"
	"github.com/mfeltenmark/freelance-crm/platform/validator"

	"github.com/spf13/cobra"
)

type app struct {
	cfg    *config.Config
	log    *logger.Logger
	client *crmsync.Client
	queue  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "crmsync",
		Short:        "Deliver booking notifications to the CRM webhook",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSender(); err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Env)
			a.client = crmsync.NewClient(cfg)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.queue, "queue", false, "queue a retry in Redis when the CRM is unreachable")

	root.AddCommand(a.sendCmd(), a.cancelCmd(), a.rescheduleCmd())
	return root
}

func (a *app) sendCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a new booking read from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readPayload(file)
			if err != nil {
				return err
			}

			if a.queue {
				return a.withSyncer(cmd.Context(), func(s *crmsync.Syncer) {
					s.SyncBooking(cmd.Context(), payload)
				})
			}

			res, err := a.client.SendBooking(cmd.Context(), payload)
			if err != nil {
				return err
			}
			if res.Duplicate {
				fmt.Fprintf(cmd.OutOrStdout(), "booking %s already in crm\n", payload.BookingID)
				return nil
			}
			return printJSON(cmd, res.Response)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a booking payload (JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <bookingId>",
		Short: "Announce a cancelled booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.update(cmd, crmsync.CancelRequest(args[0]))
		},
	}
}

func (a *app) rescheduleCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "reschedule <bookingId>",
		Short: "Announce a new start time for a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startsAt, err := validator.ParseISODateTime(date, a.cfg.GetBookingLocation())
			if err != nil {
				return fmt.Errorf("--date must be an ISO 8601 datetime: %w", err)
			}
			return a.update(cmd, crmsync.RescheduleRequest(args[0], startsAt))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "new start time, e.g. 2026-06-01T14:30:00+02:00")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (a *app) update(cmd *cobra.Command, req transport.UpdateBookingRequest) error {
	if a.queue {
		return a.withSyncer(cmd.Context(), func(s *crmsync.Syncer) {
			s.UpdateBooking(cmd.Context(), req)
		})
	}
	if err := a.client.UpdateBooking(cmd.Context(), req); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "booking %s %s\n", req.BookingID, req.Status)
	return nil
}

// withSyncer delivers through a Syncer backed by the Redis retry queue and
// waits for the background delivery before returning.
func (a *app) withSyncer(ctx context.Context, fn func(*crmsync.Syncer)) error {
	queue, err := scheduler.NewClient(a.cfg)
	if err != nil {
		return fmt.Errorf("retry queue: %w", err)
	}
	defer func() { _ = queue.Close() }()

	s := crmsync.NewSyncer(a.client, queue, a.cfg.GetCRMSyncTimeout(), a.log)
	fn(s)
	s.Wait()
	return ctx.Err()
}

func readPayload(path string) (transport.BookingPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transport.BookingPayload{}, err
	}

	var payload transport.BookingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return transport.BookingPayload{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if payload.Source == "" {
		payload.Source = transport.SourceBookMe
	}
	if payload.CreatedAt == "" {
		payload.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := validator.New().Struct(payload); err != nil {
		return transport.BookingPayload{}, fmt.Errorf("invalid booking: %v", validator.Fields(err))
	}
	return payload, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
