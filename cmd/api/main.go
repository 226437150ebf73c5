package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-relay/config"
	"campus-relay/internal/commands"
	"campus-relay/internal/escalation"
	"campus-relay/internal/events"
	"campus-relay/internal/handler"
	"campus-relay/internal/mailer"
	"campus-relay/internal/natsbus"
	relayredis "campus-relay/internal/redis"
	"campus-relay/internal/repository"
	"campus-relay/internal/server"
	"campus-relay/internal/services"
	"campus-relay/internal/websocket"
	"campus-relay/pkg/database"
	"campus-relay/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	escalationLockKey = "escalation:sweep"
	escalationLockTTL = 5 * time.Minute
)

// storage is the durable side of the relay, whichever driver backs it.
type storage struct {
	tx       repository.TxManager
	repos    repository.Repositories
	users    repository.UserDirectory
	subjects repository.SubjectDirectory
	health   func(ctx context.Context) error
	close    func()
}

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *goredis.Client
	if cfg.RedisHost != "" {
		redisClient = relayredis.NewClient(relayredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := relayredis.Ping(ctx, redisClient); err != nil {
			l.Warnf("redis unavailable, running without rate limits, cache or sweep lock: %s", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	store, err := openStorage(cfg, redisClient, l)
	if err != nil {
		l.Logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.close()

	broker, closeBroker, err := openBroker(cfg, redisClient)
	if err != nil {
		l.Logger.Fatal("failed to open broker", zap.Error(err))
	}
	defer closeBroker()

	var publisher events.Publisher
	if broker != nil {
		publisher = broker
	}
	hub := websocket.NewHub(publisher, l)

	deps := server.Dependencies{Health: store.health}
	var (
		proxies   []commands.Proxy
		sweepLock escalation.Locker
	)
	if redisClient != nil {
		limiter := relayredis.NewRateLimiter(redisClient, relayredis.RateLimitConfig{
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: time.Minute,
		})
		proxies = append(proxies, commands.NewRateLimitProxy(limiter))
		deps.RateLimiter = limiter
		sweepLock = relayredis.NewLock(redisClient, escalationLockKey, escalationLockTTL)
	}
	bus := commands.NewBus(proxies...)

	notifications := services.NewNotificationService(store.repos.Notifications, hub, l)
	delivery := services.NewDeliveryService(store.tx, notifications, store.users, hub, l)
	messages := services.NewMessageService(store.repos.Messages, hub, l)
	conversations := services.NewConversationService(store.repos.Conversations)
	auth := services.NewAuthService(cfg)
	deps.Auth = auth

	delivery.RegisterHandlers(bus)
	messages.RegisterHandlers(bus)

	m, err := newMailer(ctx, cfg, l)
	if err != nil {
		l.Logger.Fatal("failed to configure mailer", zap.Error(err))
	}
	processor := escalation.NewProcessor(store.repos.Messages, store.users, store.subjects, m, escalation.Config{
		Delay:       cfg.EscalationDelay,
		SendTimeout: cfg.EscalationSendTimeout,
		BatchSize:   cfg.EscalationBatch,
		ClaimLease:  cfg.EscalationClaimLease,
		AppURL:      cfg.PublicAppURL,
	}, l)
	runner := escalation.NewRunner(processor, cfg.EscalationInterval, sweepLock, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Messages:      handler.NewMessageHandler(delivery, messages),
		Conversations: handler.NewConversationHandler(conversations),
		Notifications: handler.NewNotificationHandler(notifications),
		WebSocket:     websocket.NewHandler(auth, hub, bus, l),
	}, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if broker != nil {
		bridge := websocket.NewBridge(broker, hub)
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}
	runner.Start(gctx)

	err = g.Wait()
	runner.Stop()
	if err != nil {
		l.Logger.Error("relay stopped with error", zap.Error(err))
		return
	}
	l.Infof("relay stopped")
}

func openStorage(cfg *config.Config, redisClient *goredis.Client, l *logger.Logger) (*storage, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		mem := repository.NewMemoryStore()
		l.Warnf("using in-memory store, data is lost on restart")
		return &storage{
			tx:       mem,
			repos:    mem.Repositories(),
			users:    mem.Directory,
			subjects: mem.Directory,
			close:    func() {},
		}, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	tx := repository.NewTxManager(db)
	dir := repository.NewDirectory(db)
	s := &storage{
		tx:       tx,
		repos:    tx.Repositories(),
		users:    dir,
		subjects: dir,
		health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		},
		close: func() {
			if err := database.Close(db); err != nil {
				l.Errorf("failed to close database: %s", err)
			}
		},
	}
	if redisClient != nil {
		// titles stay uncached so a deleted subject leaves the next email at once
		s.users = relayredis.NewCachedDirectory(redisClient, relayredis.DefaultCacheConfig(), dir, l.Named("cache").Logger)
	}
	return s, nil
}

// openBroker returns nil when the relay runs as a single process.
func openBroker(cfg *config.Config, redisClient *goredis.Client) (events.Broker, func(), error) {
	switch cfg.Broker {
	case config.BrokerNATS:
		b, err := natsbus.Connect(cfg.NatsURL)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.BrokerRedis:
		if redisClient == nil {
			return nil, func() {}, nil
		}
		return relayredis.NewBroker(redisClient), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func newMailer(ctx context.Context, cfg *config.Config, l *logger.Logger) (mailer.Mailer, error) {
	switch cfg.MailProvider {
	case config.MailProviderSES:
		return mailer.NewSESMailer(ctx, mailer.SESConfig{
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Endpoint:  cfg.AWSSESEndpoint,
			From:      cfg.MailFrom,
		})
	case config.MailProviderSMTP:
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	default:
		return mailer.NewLogMailer(l.Named("mailer").Logger), nil
	}
}
