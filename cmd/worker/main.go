// Package main is the entry point for the ChoreNest engine worker.
//
// The worker owns the background side of the economy:
//   - the nightly credibility decay sweep
//   - the per-child daily digest
//   - the leaderboard rebuild from the store of record
//   - milestone bonuses and notification delivery off the event bus
//   - the status HTTP server (health, scheduler state, family board)
//
// The host app embeds the engine's command and query handlers directly; the
// worker only runs what must happen without a user action.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chorenest/chorenest-engine/config"
	"github.com/chorenest/chorenest-engine/internal/application/command"
	"github.com/chorenest/chorenest-engine/internal/application/eventhandler"
	"github.com/chorenest/chorenest-engine/internal/application/query"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
	"github.com/chorenest/chorenest-engine/internal/domain/xp"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/external/webhook"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/messaging"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/kv"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/postgres"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/projections"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/persistence/redis"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/scheduler"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/scheduler/jobs"
	"github.com/chorenest/chorenest-engine/internal/infrastructure/service"
	"github.com/chorenest/chorenest-engine/internal/interface/rest"
	"github.com/chorenest/chorenest-engine/pkg/keylock"
	"github.com/chorenest/chorenest-engine/pkg/logger"
	"github.com/chorenest/chorenest-engine/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Setup(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cfg.App.Name)
	log.Info("starting ChoreNest engine worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"store", cfg.Store.Backend,
	)

	timeutil.SetLocation(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS CLIENT (leaderboard cache, event bus, optional store)
	// ─────────────────────────────────────────────────────────────────────────
	var redisClient *redis.Client
	if !cfg.Redis.Disabled {
		redisClient, err = connectRedis(cfg)
		if err != nil {
			if cfg.Store.Backend == config.StoreRedis {
				return fmt.Errorf("connect redis: %w", err)
			}
			log.Warn("redis unavailable, cache and cross-process events disabled", logger.Err(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. KEY-VALUE STORE
	// ─────────────────────────────────────────────────────────────────────────
	var store kv.Store
	switch cfg.Store.Backend {
	case config.StorePostgres:
		log.Info("connecting to postgres")
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer conn.Close()

		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database schema is up to date")
		store = kv.NewResilientStore(postgres.NewStore(conn), log)

	case config.StoreRedis:
		store = kv.NewResilientStore(redis.NewStore(redisClient), log)

	default:
		log.Warn("using in-memory store, state will not survive restarts")
		store = kv.NewMemoryStore()
	}

	credRepo := kv.NewCredibilityRepository(store)
	xpRepo := kv.NewXPRepository(store)

	var cache xp.LeaderboardCache
	if redisClient != nil {
		cache = redis.NewGuardedLeaderboard(redis.NewLeaderboard(redisClient), log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS AND NOTIFICATIONS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var publisher shared.EventPublisher
	var subscriber shared.EventSubscriber
	var closeBus func() error

	if redisClient != nil {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisClient.Raw(),
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("start redis event bus: %w", err)
		}
		publisher, subscriber, closeBus = bus, bus, bus.Close
	} else {
		bus := messaging.NewInMemoryEventBus(busConfig)
		publisher, subscriber, closeBus = bus, bus, bus.Close
	}
	defer func() {
		log.Info("closing event bus")
		_ = closeBus()
	}()

	var notifier service.Notifier = service.NewLoggingNotifier(log)
	if cfg.Webhook.EndpointURL != "" {
		client, err := webhook.NewClient(webhook.Config{
			EndpointURL: cfg.Webhook.EndpointURL,
			Secret:      cfg.Webhook.Secret,
			Timeout:     cfg.Webhook.Timeout,
			RateLimiterConfig: webhook.RateLimiterConfig{
				RequestsPerSecond: cfg.Webhook.RequestsPerSecond,
				BurstSize:         cfg.Webhook.BurstSize,
			},
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("configure webhook delivery: %w", err)
		}
		notifier = client
		log.Info("webhook delivery enabled", "endpoint", cfg.Webhook.EndpointURL)
	}

	hook := service.NewNotificationHook(notifier, service.NewIDGenerator(), log)
	hook.SetFilter(func(kind shared.EventType, recipientID string) bool {
		if !timeutil.IsSafeNotificationTime(timeutil.Now()) {
			return false
		}
		fctx := &config.FeatureContext{UserID: recipientID}
		switch kind {
		case shared.EventCredibilityDownvoted:
			return cfg.Features.IsEnabled(config.FeatureNotifyDownvote, fctx)
		case shared.EventDailyStreakBroken:
			return cfg.Features.IsEnabled(config.FeatureNotifyStreakLost, fctx)
		case shared.EventDailyDigestReady:
			return cfg.Features.IsEnabled(config.FeatureNotifyDailyDigest, fctx)
		case shared.EventRedemptionActivated, shared.EventRedemptionExpired:
			return cfg.Features.IsEnabled(config.FeatureNotifyRedemption, fctx)
		default:
			return cfg.Features.NotificationsEnabled(fctx)
		}
	})
	hook.Register(subscriber)

	board := projections.NewFamilyBoard(projections.FamilyBoardConfig{Logger: log})
	board.Register(subscriber)
	if err := board.Rebuild(ctx, credRepo, xpRepo); err != nil {
		return fmt.Errorf("rebuild family board: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	locks := keylock.New()

	cmdDeps := &command.Deps{
		CredibilityRepo:  credRepo,
		XPRepo:           xpRepo,
		LeaderboardCache: cache,
		Locks:            locks,
		Publisher:        publisher,
		Logger:           log,
		CredibilityRules: cfg.CredibilityRules(),
		XPRules:          cfg.XPRules(),
	}
	queryDeps := &query.Deps{
		CredibilityRepo:  credRepo,
		XPRepo:           xpRepo,
		LeaderboardCache: cache,
		Locks:            locks,
		Publisher:        publisher,
		Logger:           log,
		CredibilityRules: cfg.CredibilityRules(),
		XPRules:          cfg.XPRules(),
	}

	decayHandler := command.NewApplyDecayHandler(cmdDeps)
	statsHandler := query.NewDailyStatsHandler(queryDeps)

	milestones := eventhandler.NewOnXPAwardedHandler(xpRepo, command.NewGrantXPHandler(cmdDeps), nil, log)
	milestones.Register(subscriber)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, worker will idle")
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if cfg.Scheduler.Enabled {
		decayCron, err := scheduler.ParseCronExpression(cfg.Scheduler.DecaySweepCron)
		if err != nil {
			return fmt.Errorf("parse decay sweep cron: %w", err)
		}
		decayJob := jobs.NewDecaySweepJob(credRepo, decayHandler, publisher, log, cfg.Scheduler.JobTimeout)
		if err := sched.Register(decayJob, decayCron); err != nil {
			return fmt.Errorf("register %s: %w", decayJob.Name(), err)
		}

		digestCron, err := scheduler.ParseCronExpression(cfg.Scheduler.DigestCron)
		if err != nil {
			return fmt.Errorf("parse digest cron: %w", err)
		}
		digestJob := jobs.NewDailyDigestJob(xpRepo, statsHandler, publisher, log, cfg.Scheduler.JobTimeout)
		if err := sched.Register(digestJob, digestCron); err != nil {
			return fmt.Errorf("register %s: %w", digestJob.Name(), err)
		}

		if cache != nil {
			rebuildJob := jobs.NewRebuildLeaderboardJob(xpRepo, cache, log, cfg.Scheduler.JobTimeout)
			schedule := scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)
			if err := sched.Register(rebuildJob, schedule); err != nil {
				return fmt.Errorf("register %s: %w", rebuildJob.Name(), err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. STATUS HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var statusServer *rest.Server
	if cfg.Server.Enabled {
		serverCfg := rest.DefaultConfig()
		serverCfg.Host = cfg.Server.Host
		serverCfg.Port = cfg.Server.Port

		statusServer = rest.NewServer(serverCfg, rest.ServerDeps{
			Logger:    log,
			Version:   cfg.App.Version,
			Board:     board,
			Scheduler: sched,
		})
		statusServer.AddCheck("store", func(ctx context.Context) error {
			_, err := store.LoadInt(ctx, "health:probe", 0)
			return err
		})
		if redisClient != nil {
			statusServer.AddCheck("redis", func(ctx context.Context) error {
				return redisClient.Raw().Ping(ctx).Err()
			})
		}
		statusServer.Start()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. RUN UNTIL SIGNALED
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("ChoreNest engine worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("status server shutdown", "error", err.Error())
		}
	}
	return nil
}

// connectRedis builds a redis client from the config, preferring REDIS_URL
// when set.
func connectRedis(cfg *config.Config) (*redis.Client, error) {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	rc.KeyPrefix = cfg.Redis.KeyPrefix

	if cfg.Redis.URL != "" {
		opts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		host, portStr, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis addr %q: %w", opts.Addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("parse redis port %q: %w", portStr, err)
		}
		rc.Host = host
		rc.Port = port
		rc.Password = opts.Password
		rc.DB = opts.DB
	}

	return redis.NewClient(rc)
}
