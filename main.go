package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geo-challenge-tracker/handlers"
	"geo-challenge-tracker/models"
	"geo-challenge-tracker/services"
	"geo-challenge-tracker/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// TranslateError turns unique-constraint violations into
	// gorm.ErrDuplicatedKey, which the store relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Participant{},
		&models.Challenge{},
		&models.Result{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	store := services.NewChallengeStore(db)
	geo := services.NewGeoguessrClient()

	var notifier services.Notifier
	discordToken := os.Getenv("DISCORD_BOT_TOKEN")
	discordChannel := os.Getenv("DISCORD_CHANNEL_ID")
	if discordToken != "" && discordChannel != "" {
		discordNotifier, err := services.NewDiscordNotifier(discordToken, discordChannel, store)
		if err != nil {
			log.Fatal("failed to connect to discord:", err)
		}
		defer discordNotifier.Close()
		notifier = discordNotifier
	} else {
		log.Println("⚠️  DISCORD_BOT_TOKEN/DISCORD_CHANNEL_ID not set, notifications disabled")
	}

	trackerService := services.NewTrackerService(store, geo, notifier)
	trackerService.NcfaToken = os.Getenv("NCFA_TOKEN")
	trackerService.Email = os.Getenv("GEOGUESSR_EMAIL")
	trackerService.Password = os.Getenv("GEOGUESSR_PASSWORD")
	if trackerService.NcfaToken == "" && (trackerService.Email == "" || trackerService.Password == "") {
		log.Fatal("set NCFA_TOKEN or GEOGUESSR_EMAIL/GEOGUESSR_PASSWORD")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trackerService.RefreshSession(ctx); err != nil {
		log.Fatal("failed to establish geoguessr session:", err)
	}

	// Catch up immediately instead of waiting for midnight: record
	// today's challenge if it isn't on file yet.
	if _, _, err := trackerService.AcquireDailyChallenge(ctx); err != nil {
		log.Printf("⚠️ Startup challenge acquisition failed: %v", err)
	}

	rosterWorker := workers.NewRosterSyncWorker(trackerService, 1*time.Hour)
	rosterWorker.Start(ctx)

	if err := trackerService.StartScheduler(); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	app := fiber.New()
	handlers.SetupTrackerRoutes(app, trackerService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Roster Sync Worker running (hourly)")
	log.Println("✅ Result polling running (every 1m), daily acquisition at 00:00 UTC")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := trackerService.StopScheduler(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
