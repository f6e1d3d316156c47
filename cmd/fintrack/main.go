package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/report"
	"fintrack/internal/scheduler"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fintrack stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("fintrack stopped gracefully")
}

func run(logger *log.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		return err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		return err
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []report.Option{report.WithCurrencySymbol(cfg.CurrencySymbol)}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			return err
		}
		defer amqpClient.Close()
		opts = append(opts, report.WithEvents(amqpClient))
		logger.Info("Delivery events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Delivery events disabled - no AMQP_URL provided")
	}

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	renderer := report.NewRenderer(report.RendererOptions{CurrencySymbol: cfg.CurrencySymbol, Compress: true})
	svc := report.NewService(repo, renderer, sender, opts...)

	sched, err := scheduler.New(scheduler.Config{
		Day:         cfg.ReportDay,
		Hour:        cfg.ReportHour,
		Minute:      cfg.ReportMinute,
		Location:    cfg.Location(),
		UserTimeout: cfg.ReportUserTimeout,
	}, repo, svc, logger)
	if err != nil {
		logger.Error("Failed to create scheduler", log.FieldError, err)
		return err
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.SendRatePerMinute,
		CleanupInterval:   5 * time.Minute,
	})
	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, logger,
		apphttp.WithLimiter(limiter),
		apphttp.WithReadiness(
			apphttp.Check{Name: "database", Probe: repo.Ping},
			apphttp.Check{Name: "scheduler", Probe: func(context.Context) error {
				if !sched.Started() {
					return scheduler.ErrNotStarted
				}
				return nil
			}},
		))

	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server", log.FieldOperation, log.OpStartup, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
