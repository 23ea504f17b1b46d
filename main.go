package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	api "schedbot-backend/cmd/api"
	"schedbot-backend/internal/availability"
	"schedbot-backend/internal/negotiation/repository"
	"schedbot-backend/internal/negotiation/usecase"
	"schedbot-backend/internal/scheduler"
	"schedbot-backend/pkg/ai"
	"schedbot-backend/pkg/calendar"
	"schedbot-backend/pkg/config"
	"schedbot-backend/pkg/database"
	"schedbot-backend/pkg/mailbox"
	"schedbot-backend/pkg/smtp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	loc, _ := cfg.Location()

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repository (dependency injection)
	negotiationRepo := repository.NewNegotiationRepository(db)

	// Initialize AI scheduler
	model, err := ai.NewScheduler(ai.ProviderConfig{
		Provider:       cfg.AIProvider,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		OllamaBaseURL:  cfg.OllamaBaseURL,
		OllamaModel:    cfg.OllamaModel,
		AuthorizedUser: cfg.AuthorizedSender,
		Location:       loc,
	})
	if err != nil {
		log.Fatal("Failed to initialize AI provider:", err)
	}

	// Initialize mailbox, SMTP and calendar services
	source := mailbox.NewService(cfg.IMAPHost, cfg.IMAPPort, cfg.IMAPUsername, cfg.IMAPPassword)
	sender := smtp.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromName)
	cal, err := calendar.NewService(context.Background(), cfg.GoogleCredentialsFile, cfg.GoogleCalendarID)
	if err != nil {
		log.Fatal("Failed to initialize calendar service:", err)
	}

	// Initialize the negotiation pipeline
	hours := availability.WorkingHours{StartHour: cfg.WorkingHoursStart, EndHour: cfg.WorkingHoursEnd}
	resolver := usecase.NewThreadResolver(negotiationRepo)
	extractor := usecase.NewDetailExtractor(model, loc, hours, cfg.IMAPUsername, cfg.MinMeetingDurationMinutes)
	engine := usecase.NewEngine(negotiationRepo, cal, hours, loc, cfg.MaxNegotiationRounds, cfg.ProposalCandidateCount)
	processor := usecase.NewProcessor(negotiationRepo, resolver, extractor, engine, model, source, sender,
		cfg.AuthorizedSender, cfg.IMAPUsername, loc, cfg.WorkerCount)

	// Start the mailbox poller
	poller := scheduler.NewPoller(processor, cfg.PollInterval())
	poller.Start()

	// Start the status API
	r := gin.Default()
	api.SetupRoutes(r, negotiationRepo, cfg)
	go func() {
		log.Printf("Status API listening on port %s", cfg.APIPort)
		if err := r.Run(":" + cfg.APIPort); err != nil {
			log.Fatal("Failed to start status API:", err)
		}
	}()

	// Wait for shutdown and let any in-flight batch finish
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
	poller.Stop()
	log.Println("Shutdown complete")
}
