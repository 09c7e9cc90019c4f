package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/database"
	"github.com/iliyamo/storefront/internal/handler"
	"github.com/iliyamo/storefront/internal/identity"
	"github.com/iliyamo/storefront/internal/jobs"
	"github.com/iliyamo/storefront/internal/logging"
	"github.com/iliyamo/storefront/internal/mail"
	"github.com/iliyamo/storefront/internal/middleware"
	"github.com/iliyamo/storefront/internal/payment"
	"github.com/iliyamo/storefront/internal/queue"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/router"
	"github.com/iliyamo/storefront/internal/rpc"
	"github.com/iliyamo/storefront/internal/service"
	"github.com/iliyamo/storefront/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer db.Close()

	if cfg.AutoMigrate {
		version, err := database.Migrate(db)
		if err != nil {
			log.WithError(err).Fatal("migrate")
		}
		log.WithField("version", version).Info("schema up to date")
	}

	// nil when Redis is unreachable; cache and rate limit degrade locally
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Address()).Warn("redis unavailable, running without cache")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)
	webhookEvents := repository.NewWebhookEventRepo(db)

	publisher := queue.NewAMQPPublisher(cfg.AMQPURL)

	var mailer mail.Mailer = mail.LogMailer{Log: log}
	if cfg.Mail.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPUser, cfg.Mail.SMTPPass, cfg.Mail.From)
	}

	store := identity.NewSQLStore(users, tokens, publisher, log, identity.Options{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		ServerURL:      cfg.ServerURL,
	})
	authSvc := service.NewAuthService(store)
	paymentSvc := service.NewPaymentService(products, orders, webhookEvents,
		payment.NewStripeGateway(cfg.StripeSecretKey), publisher, log, service.PaymentOptions{
			ServerURL:            cfg.ServerURL,
			SupplementaryPriceID: cfg.SupplementaryPriceID,
		})
	productSvc := service.NewProductService(products)
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, checkout sessions are disabled")
	}

	e := router.New(log, cfg.AllowOrigins())
	renderer, err := web.NewRenderer()
	if err != nil {
		log.WithError(err).Fatal("templates")
	}
	e.Renderer = renderer

	auth := router.Auth{Secret: cfg.JWTSecret, Cookie: cfg.SessionCookie}
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, log)
	cache := middleware.NewRedisCache(cfg.Cache, rdb)

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, handler.CookieConfig{
		Session: cfg.SessionCookie,
		Refresh: cfg.RefreshCookie,
		Secure:  cfg.CookieSecure,
	}), auth, limit)
	router.RegisterPayment(e, handler.NewPaymentHandler(paymentSvc),
		handler.NewWebhookHandler(payment.NewStripeVerifier(cfg.StripeWebhookSecret), paymentSvc, log), auth, limit)
	router.RegisterProducts(e, handler.NewProductHandler(productSvc), auth, limit, cache)

	// the pages call the procedures over loopback like any other client
	client := rpc.NewClient(rpc.ClientConfig{BaseURL: "http://127.0.0.1:" + cfg.Port})
	web.NewPages(client, log, cfg.SessionCookie).Register(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.AMQPURL, log)
	consumer.Handle(queue.QueueVerificationRequested, queue.VerificationMailHandler(mailer))
	consumer.Handle(queue.QueueOrderPaid, queue.OrderReceiptHandler(mailer, users))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("queue consumer stopped")
		}
	}()

	scheduler := jobs.NewScheduler(tokens, webhookEvents, cfg.WebhookRetention, log)
	if err := scheduler.Start(cfg.CleanupSchedule); err != nil {
		log.WithError(err).Fatal("cleanup jobs")
	}

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
	}
}
