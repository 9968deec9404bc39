package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	tele "gopkg.in/telebot.v3"

	"github.com/ametov/paraphrase-bot/internal/config"
	"github.com/ametov/paraphrase-bot/internal/database"
	"github.com/ametov/paraphrase-bot/internal/delivery/tgbot"
	"github.com/ametov/paraphrase-bot/internal/middleware"
	"github.com/ametov/paraphrase-bot/internal/repositories"
	"github.com/ametov/paraphrase-bot/internal/services"
	"github.com/ametov/paraphrase-bot/pkg/logging"
)

func main() {
	ctx := context.Background()
	if err := logging.SetupLogger(); err != nil {
		slog.ErrorContext(ctx, "Error setting up logger", "error", err)
		return
	}

	if err := godotenv.Load(); err != nil {
		slog.ErrorContext(ctx, "Error loading .env file", "error", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/application.yaml"
	}
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		slog.ErrorContext(ctx, "Error loading config", "error", err)
		return
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/paraphrase-bot.db"
	}

	db, err := database.NewDB(dbPath)
	if err != nil {
		slog.ErrorContext(ctx, "Error initializing database", "error", err)
		return
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.ErrorContext(ctx, "Error running database migrations", "error", err)
		return
	}

	credentials := config.Credentials()
	if len(credentials) == 0 {
		slog.ErrorContext(ctx, "No upstream credentials configured; set GEMINI_API_KEYS")
		return
	}

	userRepo := repositories.NewUserRepo(db)
	referralRepo := repositories.NewReferralRepo(db)
	rotationRepo := repositories.NewRotationRepo(db)
	adminRepo := repositories.NewAdminRepo(db)
	sessionRepo := repositories.NewSessionRepo()

	rotation, err := services.NewKeyRotationController(
		rotationRepo,
		credentials,
		appConfig.RotationWindow(),
		appConfig.RotationThreshold,
		time.Now,
	)
	if err != nil {
		slog.ErrorContext(ctx, "Error initializing rotation controller", "error", err)
		return
	}

	ledger := services.NewUsageLedger(userRepo, appConfig.DailyCap)
	gate := services.NewVerificationGate(userRepo, appConfig.FreeTierThreshold, appConfig.VerificationTTL())
	referrals := services.NewReferralTracker(userRepo, referralRepo, ledger, appConfig.ReferralCredit, os.Getenv("BOT_USERNAME"))
	llmClient := services.NewGeminiClient(appConfig.ModelId)
	paraphraser := services.NewParaphraseService(llmClient, ledger, gate, rotation, appConfig.WordTarget)
	machine := services.NewSessionStateMachine(
		sessionRepo,
		paraphraser,
		gate,
		referrals,
		appConfig.ReferralCredit,
		os.Getenv("VERIFICATION_LINK"),
	)
	adminService := services.NewAdminService(adminRepo, os.Getenv("ADMIN_PASSWORD_HASH"))

	registrar := middleware.UserRegistrar{UserRepo: userRepo}
	inflight := middleware.InflightGate{}

	pref := tele.Settings{
		Token:  os.Getenv("TOKEN"),
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		slog.ErrorContext(ctx, "Error creating bot", "error", err)
		return
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			newCtx := context.WithValue(ctx, "tg_user_id", c.Sender().ID)
			requestID := uuid.New().String()
			newCtx = context.WithValue(newCtx, "request_id", requestID)
			c.Set("requestContext", newCtx)
			return next(c)
		}
	})
	b.Use(middleware.Logger())
	b.Use(registrar.Middleware())
	b.Use(inflight.Middleware())

	adminCommand := os.Getenv("ADMIN_COMMAND")
	if adminCommand == "" {
		adminCommand = "/admin"
	}

	tgbot.RegisterHandlers(b, machine, gate, adminService, adminCommand)

	gateway := &tgbot.TelegramGateway{Bot: b}
	gate.StartSweeper(appConfig.SweepInterval(), gateway)
	defer gate.StopSweeper()

	reporter := services.NewReportScheduler(userRepo, adminRepo, rotation, gateway, appConfig.ReportInterval())
	reporter.Start()
	defer reporter.Stop()

	slog.InfoContext(ctx, "Listening...")
	b.Start()
}
