package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"

	"github.com/protein-tracker/stock-bot/internal/bot"
	"github.com/protein-tracker/stock-bot/internal/config"
	"github.com/protein-tracker/stock-bot/internal/monitor"
	"github.com/protein-tracker/stock-bot/internal/notifier"
	"github.com/protein-tracker/stock-bot/internal/producer"
	"github.com/protein-tracker/stock-bot/internal/repository"
	"github.com/protein-tracker/stock-bot/internal/stockapi"
)

func main() {
	log.Println("Starting Stock Bot Service...")

	// Load configuration
	cfg := config.Load()
	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN environment variable is required")
	}

	// Initialize database connection
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repository and schema
	repo := repository.NewSubscriptionRepository(db, redisClient)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("Database tables created/verified")

	// Initialize Telegram bot
	telegramBot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}
	log.Printf("Authorized on account %s", telegramBot.Self.UserName)

	// Initialize the stock event producer (optional)
	var eventPublisher monitor.EventPublisher
	if cfg.KafkaBrokers != "" {
		stockProducer, err := producer.NewStockEventProducer(
			strings.Split(cfg.KafkaBrokers, ","),
			cfg.KafkaStockEventsTopic,
		)
		if err != nil {
			log.Printf("Warning: Kafka producer unavailable, continuing without event stream: %v", err)
		} else {
			defer stockProducer.Close()
			eventPublisher = stockProducer
		}
	}

	// Initialize the upstream client, dispatcher and monitor
	apiClient := stockapi.NewClient(cfg.ShopBaseURL, cfg.StoreRegion)
	sender := notifier.NewTelegramSender(telegramBot)
	dispatcher := notifier.NewDispatcher(sender, cfg.SendConcurrency, cfg.SendRateLimit)
	schedule := monitor.NewSchedule(
		cfg.PeakInterval, cfg.PollInterval,
		cfg.PeakStartHour, cfg.PeakEndHour,
		cfg.DowntimeStartHour, cfg.DowntimeEndHour,
		cfg.Timezone,
	)

	stockMonitor := monitor.New(apiClient, repo, dispatcher, eventPublisher, schedule, cfg.DrainTimeout)
	stockMonitor.Start()

	// Register bot commands
	botHandler := bot.NewBotHandler(telegramBot, repo, apiClient, schedule)
	if _, err := telegramBot.Request(tgbotapi.NewSetMyCommands(bot.Commands...)); err != nil {
		log.Printf("Failed to register bot commands: %v", err)
	} else {
		log.Println("Bot commands registered")
	}

	// Start receiving updates
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := telegramBot.GetUpdatesChan(updateConfig)

	go func() {
		for update := range updates {
			go botHandler.HandleUpdate(update)
		}
	}()

	// Start health check server
	go startHealthServer(cfg.HealthPort)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Stock bot is ready and monitoring products...")

	<-sigChan
	log.Println("Shutdown signal received, stopping...")

	telegramBot.StopReceivingUpdates()
	stockMonitor.Stop()

	log.Println("Stock bot stopped gracefully")
}

// initDB initializes the database connection
func initDB(cfg config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPass, cfg.PostgresDB)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			log.Println("Database connection established")
			return db, nil
		}
		log.Printf("Waiting for database... (%d/30)", i+1)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("database connection timeout")
}

// initRedis initializes the Redis client
func initRedis(cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			log.Println("Redis connection established")
			return client
		}
		log.Printf("Waiting for Redis... (%d/30)", i+1)
		time.Sleep(2 * time.Second)
	}

	log.Println("Warning: Redis connection failed, continuing without cache")
	return client
}

// startHealthServer starts a simple health check HTTP server
func startHealthServer(port string) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	log.Printf("Health check server listening on :%s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Printf("Health server error: %v", err)
	}
}
