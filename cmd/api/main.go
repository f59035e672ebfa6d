package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"dealbroker/config"
	amqpbroker "dealbroker/internal/broker/amqp"
	"dealbroker/internal/broker/kafka"
	"dealbroker/internal/consumer"
	"dealbroker/internal/domain/interaction"
	"dealbroker/internal/events"
	"dealbroker/internal/handler"
	"dealbroker/internal/metrics"
	"dealbroker/internal/notify"
	"dealbroker/internal/outbox"
	brokerredis "dealbroker/internal/redis"
	"dealbroker/internal/repository"
	"dealbroker/internal/repository/memory"
	"dealbroker/internal/scheduler"
	"dealbroker/internal/server"
	"dealbroker/internal/services"
	"dealbroker/pkg/database"
	"dealbroker/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mode := logger.DevelopmentMode
	if cfg.Server.Mode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Logger.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	store, health, err := openStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	if health.closer != nil {
		closers = append(closers, health.closer)
	}

	prom := metrics.NewPromMetrics(prometheus.DefaultRegisterer)

	producer, err := kafka.NewProducerClient(cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()
	publisher := kafka.NewPublisher(producer)

	var sink events.DeadLetterSink
	switch cfg.DeadLetter.Sink {
	case "amqp":
		conn, ch, err := amqpbroker.Dial(cfg.DeadLetter.AMQPURL)
		if err != nil {
			return err
		}
		closers = append(closers, conn, ch)
		if sink, err = amqpbroker.NewDeadLetterSink(ch, cfg.DeadLetter.AMQPQueue); err != nil {
			return err
		}
	default:
		sink = kafka.NewDeadLetterSink(producer, cfg.Kafka.DLQTopic)
	}

	var sender notify.Sender
	if cfg.Notifier.TelegramToken != "" {
		bot, err := notify.NewTelegramBot(cfg.Notifier.TelegramToken)
		if err != nil {
			return err
		}
		sender = notify.NewTelegramSender(bot)
	} else {
		l.Warnf("TELEGRAM_BOT_TOKEN is empty, notifications are only logged")
		sender = notify.NewLogSender(l)
	}
	sender = notify.NewBreakerSender(sender, "chat", notify.DefaultBreakerConfig(), l)
	deliverer := notify.NewDeliverer(sender, sink, cfg.Notifier.SendRetries, cfg.Notifier.RetryDelay,
		notify.WithDeliveryMetrics(prom),
		notify.WithDeliveryLogger(l),
	)

	policy := interaction.PostponePolicy{Delay: cfg.Feedback.PostponeDelay, MaxPostpones: cfg.Feedback.MaxPostpones}
	users := services.NewUserService(store.Repos().Users)
	tasks := services.NewTaskService(store)
	interactions := services.NewInteractionService(store, policy, l)
	dispatch := services.NewOfferDispatchService(store, deliverer, cfg.Notifier.FanOut, prom, l)
	responses := services.NewOfferResponseService(store, interactions, deliverer, prom, l)
	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	deps := server.Dependencies{Auth: auth, HealthCheck: health.Check}
	sweepOpts := []scheduler.Option{scheduler.WithMetrics(prom), scheduler.WithLogger(l)}

	rc := brokerredis.NewClient(cfg.Redis)
	closers = append(closers, rc)
	if err := brokerredis.Ping(ctx, rc, 3*time.Second); err != nil {
		l.Warnf("redis unavailable, running without rate limits, user cache and sweep lock: %s", err)
	} else {
		deps.Limiter = brokerredis.NewRateLimiter(rc, brokerredis.DefaultLimits())
		users.WithCache(brokerredis.NewCacheStore(rc, brokerredis.DefaultCacheConfig()))
		sweepOpts = append(sweepOpts, scheduler.WithLocker(brokerredis.NewLocker(rc, cfg.Redis.LockTTL)))
	}

	processor := outbox.ProcessorFromConfig(cfg, store, publisher, outbox.WithMetrics(prom), outbox.WithLogger(l))
	outbox.NewRunner(processor).Start(ctx)

	consumerClient, err := kafka.NewConsumerClient(cfg.Kafka)
	if err != nil {
		return err
	}
	defer consumerClient.Close()
	activations := consumer.NewActivationConsumer(consumerClient, dispatch, cfg.Kafka.HandleAttempts, cfg.Notifier.RetryDelay, l)
	go activations.Run(ctx)

	schedule := scheduler.ReminderSchedule{
		Location: cfg.Feedback.Location(),
		Hour:     cfg.Feedback.ReminderHour,
		Minute:   cfg.Feedback.ReminderMinute,
	}
	sweep := scheduler.NewReminderSweep(store, deliverer, schedule, cfg.Feedback.PollInterval, sweepOpts...)
	go sweep.Run(ctx)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Users:        handler.NewUserHandler(users),
		Tasks:        handler.NewTaskHandler(tasks, responses),
		Interactions: handler.NewInteractionHandler(interactions),
		Callbacks:    handler.NewCallbackHandler(users, responses, interactions),
	}, deps)
	return srv.Start(ctx)
}

// storeHealth checks the backing database; the memory store is always up.
type storeHealth struct {
	closer io.Closer
	check  func(ctx context.Context) error
}

func (h storeHealth) Check(ctx context.Context) error {
	if h.check == nil {
		return nil
	}
	return h.check(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, l *logger.Logger) (repository.Store, storeHealth, error) {
	if cfg.Database.Store == "memory" {
		l.Warnf("STORE=memory: state is lost on restart")
		return memory.New(), storeHealth{}, nil
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, storeHealth{}, err
	}
	if err := database.MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, storeHealth{}, err
	}
	l.Infof("database ready")
	return repository.NewSQLStore(db), storeHealth{
		closer: db,
		check:  func(ctx context.Context) error { return database.HealthCheck(ctx, db) },
	}, nil
}
