package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"studio_reminder_service/internal/app"
	"studio_reminder_service/internal/infra/config"
	idb "studio_reminder_service/internal/infra/database"
	"studio_reminder_service/internal/infra/httpapi"
	"studio_reminder_service/internal/infra/logger"
	"studio_reminder_service/internal/infra/scheduler"
	iwhatsapp "studio_reminder_service/internal/infra/whatsapp"
)

func main() {
	fmt.Println("Studio Reminder Service starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	appLog := logger.Get()
	appLog.Infof("Configuration loaded. Environment: %s, Zone: %s, Lead time: %s, Provider: %s",
		cfg.Environment, cfg.TimeZone, cfg.LeadTime, cfg.WhatsAppProvider)

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	appLog.Info("Database connection established successfully.")

	if err := idb.Migrate(db); err != nil {
		appLog.Fatalf("Could not apply database migrations: %v", err)
	}
	appLog.Info("Database schema is up to date.")

	// Initialize Repository and Provider
	appointmentRepo := idb.NewPostgresAppointmentRepository(db)
	appLog.Info("Appointment repository initialized.")

	provider := iwhatsapp.NewProvider(cfg, appLog)
	appLog.Infof("WhatsApp provider initialized: %s", provider.ID())

	// Initialize ReminderService
	reminderService := app.NewReminderService(
		appointmentRepo,
		provider,
		appLog,
		cfg.Location,
		cfg.LeadTime,
		cfg.StudioName,
	)
	appLog.Info("Reminder service initialized.")

	// Initialize ReminderScheduler
	reminderScheduler := scheduler.NewReminderScheduler(reminderService, appLog, cfg.CronSpecReminderRun)
	reminderScheduler.Start()

	// Initialize HTTP API (external trigger + health)
	server := httpapi.NewServer(reminderService, cfg.RunnerKey, appLog)
	go func() {
		if err := server.Start(cfg.HTTPListenAddr); err != nil {
			appLog.Fatalf("HTTP server stopped: %v", err)
		}
	}()

	appLog.Info("Application setup complete. Scheduler and HTTP API are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	appLog.Info("Shutting down application...")
	reminderScheduler.Stop()
	// db.Close() is handled by defer
	appLog.Info("Application shut down gracefully.")
}
