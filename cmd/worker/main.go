// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/unclebandit/reminder-scheduler/internal/config"
	"github.com/unclebandit/reminder-scheduler/internal/db"
	"github.com/unclebandit/reminder-scheduler/internal/lock"
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

	customerRepo := &repository.CustomerRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	deliveryRepo := &repository.DeliveryLogRepository{DB: conn}

	dispatcher, err := transport.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to configure transports")
	}

	scheduler := &service.Scheduler{
		Campaigns: &service.CampaignService{
			CampaignRepo: campaignRepo,
			DeliveryRepo: deliveryRepo,
			Logger:       log,
		},
		Recipients: &service.RecipientResolver{
			CustomerRepo: customerRepo,
			AllCustomers: cfg.ResolverMode == config.ResolverModeAllCustomers,
			Logger:       log,
		},
		Deliveries: deliveryRepo,
		Renderer:   service.PlaceholderRenderer{},
		Dispatcher: dispatcher,
		Logger:     log,
		Workers:    cfg.SchedulerWorkers,
	}

	if cfg.RedisAddr != "" {
		locker, err := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RunLockTTL(), log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer locker.Close()
		scheduler.Locker = locker
	}

	if cfg.AMQPURL != "" {
		q, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer q.Close()
		if err := queue.StartRunTriggerSubscriber(q, scheduler, log); err != nil {
			log.WithError(err).Fatal("failed to subscribe to run triggers")
		}
		log.WithField("queue", queue.TopicRunDue).Info("listening for run triggers")
	}

	service.NewWorker(scheduler, cfg.SchedulerInterval(), cfg.SchedulerActorID, log).Start(ctx)
}
