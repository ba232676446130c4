// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/reminder-scheduler/internal/config"
	"github.com/unclebandit/reminder-scheduler/internal/controller"
	"github.com/unclebandit/reminder-scheduler/internal/db"
	"github.com/unclebandit/reminder-scheduler/internal/handler"
	"github.com/unclebandit/reminder-scheduler/internal/logger"
	"github.com/unclebandit/reminder-scheduler/internal/queue"
	"github.com/unclebandit/reminder-scheduler/internal/repository"
	"github.com/unclebandit/reminder-scheduler/internal/service"
	"github.com/unclebandit/reminder-scheduler/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	preferenceRepo := &repository.PreferenceRepository{DB: conn}
	deliveryRepo := &repository.DeliveryLogRepository{DB: conn}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		DeliveryRepo: deliveryRepo,
		Logger:       log,
	}
	preferenceService := &service.PreferenceService{
		PreferenceRepo: preferenceRepo,
		CustomerRepo:   customerRepo,
	}
	resolver := &service.RecipientResolver{
		CustomerRepo: customerRepo,
		AllCustomers: cfg.ResolverMode == config.ResolverModeAllCustomers,
		Logger:       log,
	}
	scheduler := &service.Scheduler{
		Campaigns:  campaignService,
		Recipients: resolver,
		Deliveries: deliveryRepo,
		Renderer:   service.PlaceholderRenderer{},
		Logger:     log,
		Workers:    cfg.SchedulerWorkers,
	}

	// With a broker, triggers go to the worker process. Without one the
	// server runs triggered batches itself.
	var q queue.Queue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		dispatcher, err := transport.New(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("failed to configure transports")
		}
		scheduler.Dispatcher = dispatcher
		q = queue.NewInMemoryQueue(log)
		if err := queue.StartRunTriggerSubscriber(q, scheduler, log); err != nil {
			log.WithError(err).Fatal("failed to subscribe to run triggers")
		}
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Preferences:     preferenceService,
		Customers:       customerRepo,
		Resolver:        resolver,
		Previewer:       scheduler,
		Queue:           q,
		Logger:          log,
	}
	preferenceHandler := &handler.PreferenceHandler{Preferences: preferenceService, Logger: log}
	deliveryHandler := &handler.DeliveryHandler{Deliveries: deliveryRepo, Campaigns: campaignService, Logger: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	campaignController.Routes(r)
	preferenceHandler.Routes(r)
	deliveryHandler.Routes(r)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("server running")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
}
