// Command send-reports runs the monthly email pass once, for the month
// given by -year and -month or for the previous calendar month.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/report"
	"fintrack/internal/scheduler"
	"fintrack/internal/storage"
)

const (
	exitOK = iota
	exitError
	exitUsage
	exitPartial
)

func main() {
	_ = godotenv.Load()

	year := flag.Int("year", 0, "report year (default: previous month)")
	month := flag.Int("month", 0, "report month 1-12 (default: previous month)")
	flag.Parse()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	os.Exit(run(logger, *year, *month))
}

func run(logger *log.Logger, year, month int) int {
	now := time.Now()
	if year != 0 || month != 0 {
		p, err := core.NewPeriod(year, month)
		if err != nil {
			logger.Error("Invalid period", log.FieldError, err, "year", year, "month", month)
			return exitUsage
		}
		// RunOnce reports on the month before now.
		now = p.End()
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		return exitError
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		return exitError
	}
	defer repo.Close()

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	renderer := report.NewRenderer(report.RendererOptions{CurrencySymbol: cfg.CurrencySymbol, Compress: true})
	svc := report.NewService(repo, renderer, sender, report.WithCurrencySymbol(cfg.CurrencySymbol))

	sched, err := scheduler.New(scheduler.Config{
		Day:         cfg.ReportDay,
		Hour:        cfg.ReportHour,
		Minute:      cfg.ReportMinute,
		Location:    cfg.Location(),
		UserTimeout: cfg.ReportUserTimeout,
	}, repo, svc, logger)
	if err != nil {
		logger.Error("Failed to create scheduler", log.FieldError, err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := sched.RunOnce(ctx, now)
	if err != nil {
		logger.Error("Monthly report pass failed", log.FieldError, err)
		return exitError
	}
	if summary.Failed > 0 {
		return exitPartial
	}
	return exitOK
}
