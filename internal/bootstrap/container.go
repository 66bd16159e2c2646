package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"subtrack-be/internal/config"
	"subtrack-be/internal/controller"
	"subtrack-be/internal/pkg/logger"
	"subtrack-be/internal/pkg/mailer"
	"subtrack-be/internal/repository/unitofwork"
	"subtrack-be/internal/service"
	"subtrack-be/internal/websocket"
	pkgNats "subtrack-be/pkg/nats"
	"subtrack-be/pkg/stripegateway"
)

type Container struct {
	// Controllers
	AuthController      controller.IAuthController
	BillingController   controller.IBillingController
	WebhookController   controller.IWebhookController
	ActivityController  controller.IActivityController
	DashboardController controller.IDashboardController

	// Background Services (Exposed for main.go to run)
	DunningService service.IDunningService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pkgNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	feedLogger := logger.NewIsolatedLogger("logs/feed.log")
	wsHub := websocket.NewHub(rdb, feedLogger)
	go wsHub.Run()

	// 3. Payment Gateway
	gateway := stripegateway.NewStripeGateway(cfg.Stripe.SecretKey)

	// 4. Services
	activityService := service.NewActivityService(uowFactory, sysLogger)
	authService := service.NewAuthService(uowFactory, activityService)

	reconcileService := service.NewReconcileService(
		uowFactory,
		natsPub,
		pubSub,
		cfg.App.DunningTopic,
		sysLogger,
	)
	webhookService := service.NewWebhookService(
		cfg.Stripe.WebhookSecret,
		rdb,
		reconcileService,
		sysLogger,
	)
	billingService := service.NewBillingService(
		uowFactory,
		gateway,
		activityService,
		natsPub,
		emailService,
		sysLogger,
	)
	dunningService := service.NewDunningService(
		pubSub,
		cfg.App.DunningTopic,
		uowFactory,
		emailService,
		sysLogger,
	)

	// 5. Live Activity Feed (NATS -> websocket)
	notifService := service.NewNotificationService(natsSub, wsHub, feedLogger)
	if natsSub != nil {
		go notifService.Start()
	}

	return &Container{
		AuthController:      controller.NewAuthController(authService),
		BillingController:   controller.NewBillingController(billingService),
		WebhookController:   controller.NewWebhookController(webhookService),
		ActivityController:  controller.NewActivityController(activityService),
		DashboardController: controller.NewDashboardController(billingService),

		DunningService: dunningService,
		WebSocketHub:   wsHub,
	}
}
