package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mfeltenmark/freelance-crm/internal/crmsync"
	"github.com/mfeltenmark/freelance-crm/internal/email"
	"github.com/mfeltenmark/freelance-crm/internal/scheduler"
	"github.com/mfeltenmark/freelance-crm/platform/config"
	"github.com/mfeltenmark/freelance-crm/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.ValidateSender(); err != nil {
		panic("invalid config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName(), "maxRetry", cfg.GetCRMSyncMaxRetry())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alerts := email.NewSender(cfg)
	if !cfg.IsEmailEnabled() {
		log.Warn("SMTP_HOST, EMAIL_FROM_ADDRESS or ALERT_EMAIL not configured; dead letter alerts disabled")
	}

	worker, err := scheduler.NewWorker(cfg, crmsync.NewClient(cfg), alerts, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
