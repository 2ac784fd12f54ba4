package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"premium-service/internal/client"
	"premium-service/internal/config"
	"premium-service/internal/database/postgres"
	"premium-service/internal/database/redis"
	"premium-service/internal/event"
	"premium-service/internal/gateway"
	"premium-service/internal/handlers"
	"premium-service/internal/models"
	"premium-service/internal/repository"
	"premium-service/internal/services"

	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
)

func setupLogging() (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	logDir := filepath.Join("/bemasathi", "log", "premium_service")
	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewTextHandler(file, nil)))

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()
	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.PostgresCfg.Host, cfg.PostgresCfg.Port, cfg.PostgresCfg.Username, cfg.PostgresCfg.DBname)

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connect to database: %s", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	// Redis is a cache in front of the policy catalog; the service runs
	// without it.
	var redisCache *goredis.Client
	if redisClient, err := redis.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB); err != nil {
		log.Printf("redis unavailable, policy cache disabled: %s", err)
	} else {
		defer redisClient.Close()
		redisCache = redisClient.GetClient()
	}

	// Notifications are best-effort; without RabbitMQ the service still
	// settles payments.
	var notificationHelper *event.NotificationHelper
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Printf("rabbitmq unavailable, notifications disabled: %s", err)
	} else {
		defer rabbitConn.Close()
		notificationHelper = event.NewNotificationHelper(event.NewNotificationPublisher(rabbitConn))
	}

	// repositories
	policyRepo := repository.NewPolicyRepository(db)
	buyRequestRepo := repository.NewBuyRequestRepository(db)
	intentRepo := repository.NewPaymentIntentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// gateways
	gatewayTimeout := time.Duration(cfg.RenewalCfg.GatewayTimeoutSeconds) * time.Second
	gateways := map[models.PaymentGateway]gateway.Gateway{
		models.GatewayEsewa:  gateway.NewEsewaGateway(cfg.EsewaCfg, gatewayTimeout),
		models.GatewayKhalti: gateway.NewKhaltiGateway(cfg.KhaltiCfg, gatewayTimeout),
	}

	// services
	profileClient := client.NewProfileClient(cfg.ProfileCfg)
	policyService := services.NewPolicyService(policyRepo, redisCache)
	ratingEngine := services.NewRatingEngine()
	cycleResolver := services.NewBillingCycleResolver()
	scheduler := services.NewRenewalScheduler(cfg.RenewalCfg.GraceDays)
	purchaseService := services.NewPurchaseService(policyService, buyRequestRepo, intentRepo, paymentRepo, profileClient, ratingEngine, cycleResolver)

	var paymentNotifier services.PaymentNotifier
	var renewalNotifier services.RenewalNotifier
	if notificationHelper != nil {
		paymentNotifier = notificationHelper
		renewalNotifier = notificationHelper
	}

	paymentService := services.NewPaymentService(paymentRepo, buyRequestRepo, intentRepo, policyService, gateways, scheduler, paymentNotifier)

	renewalJob := services.NewRenewalStatusJob(buyRequestRepo, policyService, scheduler, renewalNotifier)
	if err := renewalJob.Start(cfg.RenewalCfg.SweepCronSpec); err != nil {
		log.Printf("failed to start renewal sweep: %s", err)
	}
	defer renewalJob.Stop()

	// handlers
	policyHandler := handlers.NewPolicyHandler(policyService)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, purchaseService, policyService, cfg.FrontendCfg)

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Premium service is healthy")
	})

	policyHandler.Register(app)
	purchaseHandler.Register(app)
	paymentHandler.Register(app)

	log.Printf("Starting premium-service on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
