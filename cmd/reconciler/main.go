package main

import (
	"context"
	"time"

	adminhandler "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/admin/handler"
	bookingrepo "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/repository"
	bookingsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/validator"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/expiration"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/ingestion"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/notifications"
	paymentrepo "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/repository"
	paymentsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/verification"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/app"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/kafka"
	kafkaconfig "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/kafka/config"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

const ServiceName = "reconciler"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting payment reconciliation service")

	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	paymentRepo := paymentrepo.NewMongoPaymentRepository(cfg)
	ensureIndexes(cfg, bookingRepo, paymentRepo)

	producer := newProducer(cfg)
	dispatcher := newDispatcher(cfg, producer)

	lifecycle := bookingsvc.NewLifecycleCoordinator(bookingRepo, paymentRepo, dispatcher, cfg)
	bookingService := bookingsvc.NewBookingService(
		bookingRepo,
		bookingrepo.NewSlotLockRepository(cfg),
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	paymentService := paymentsvc.NewPaymentService(paymentRepo, cfg)

	controller := verification.NewController(cfg.Log)
	pipeline := ingestion.NewPipeline(bookingRepo, paymentRepo, lifecycle, controller, cfg)
	screenshotService := ingestion.NewScreenshotService(
		ingestion.NewHTTPScreenshotExtractor(cfg.ScreenshotExtractorURL),
		bookingService,
		lifecycle,
		paymentService,
		pipeline,
		cfg,
	)

	ingestionScheduler := ingestion.NewScheduler(
		ingestion.NewMongoEmailSource(cfg),
		paymentService,
		pipeline,
		cfg,
	)
	expirationScheduler := expiration.NewScheduler(bookingRepo, lifecycle, cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		adminhandler.NewBookingHandler(bookingService, paymentService, lifecycle, screenshotService, cfg.Log),
		adminhandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.AddWorker(ingestionScheduler.Run)
	serverApp.AddWorker(expirationScheduler.Run)
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
		cfg.Client.GracefulShutdown()
	})
	serverApp.Run()
}

func ensureIndexes(cfg *config.Config, bookings bookingrepo.BookingRepository, payments paymentrepo.PaymentRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := bookings.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create booking indexes", "error", err)
	}
	if err := payments.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create payment indexes", "error", err)
	}
	cfg.Log.Info("Database indexes ensured")
}

func newProducer(cfg *config.Config) *kafka.Producer {
	producer, err := kafka.NewProducer(kafkaconfig.Load(), cfg.NotificationTopic, cfg.NotificationDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	return producer
}

func newDispatcher(cfg *config.Config, producer *kafka.Producer) notifications.Dispatcher {
	// Both transports ride the same topic; downstream gateways filter on the
	// channel header.
	channel := notifications.NewKafkaChannel(producer, ServiceName)
	return notifications.NewDispatcher(cfg.Log, map[string]notifications.Channel{
		model.ChannelWeb:      channel,
		model.ChannelWhatsApp: channel,
	})
}
