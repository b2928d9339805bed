package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peoplehub/dispatch/modules/hr"
	"github.com/peoplehub/dispatch/pkg/config"
	"github.com/peoplehub/dispatch/pkg/email"
	"github.com/peoplehub/dispatch/pkg/logger"
	"github.com/peoplehub/dispatch/pkg/notify"
	"github.com/peoplehub/dispatch/pkg/pg"
	"github.com/peoplehub/dispatch/pkg/queue"
	"github.com/peoplehub/dispatch/pkg/realtime"
	"github.com/peoplehub/dispatch/pkg/redis"
)

type appConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	EmailConcurrency int `env:"QUEUE_EMAIL_CONCURRENCY" envDefault:"2"`
	RealtimeBuffer   int `env:"REALTIME_BUFFER" envDefault:"16"`

	// EmailDevDir switches outbound email to on-disk .html files for local
	// development. Leave empty in production.
	EmailDevDir string `env:"EMAIL_DEV_DIR"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("engine exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		appCfg   appConfig
		logCfg   logger.Config
		pgCfg    pg.Config
		redisCfg redis.Config
		emailCfg email.Config
		queueCfg queue.Config
	)
	if err := config.Load(&appCfg); err != nil {
		return err
	}
	if err := config.Load(&queueCfg); err != nil {
		return err
	}
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	if err := config.Load(&pgCfg); err != nil {
		return err
	}
	if err := config.Load(&redisCfg); err != nil {
		return err
	}
	if err := config.Load(&emailCfg); err != nil {
		return err
	}

	log := logger.FromConfig(logCfg, logger.WithService("dispatch-engine"))
	logger.SetAsDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	broker, err := queue.NewRedisBroker(redisClient, queueCfg.Prefix)
	if err != nil {
		return err
	}

	manager, err := queue.NewManager(broker,
		queue.WithQueue(hr.QueueNotifications, queue.QueueConfig{Concurrency: queueCfg.MaxConcurrentJobs}),
		queue.WithQueue(hr.QueueEmails, queue.QueueConfig{Concurrency: appCfg.EmailConcurrency}),
		queue.WithQueue(hr.QueueReports, queue.QueueConfig{Concurrency: 1}),
		queue.WithPollInterval(queueCfg.PollInterval),
		queue.WithLockTimeout(queueCfg.LockTimeout),
		queue.WithManagerLogger(log),
	)
	if err != nil {
		return err
	}

	var mailer email.EmailSender
	if appCfg.EmailDevDir != "" {
		mailer = email.NewDevSender(appCfg.EmailDevDir)
		log.Info("using development email sender", slog.String("dir", appCfg.EmailDevDir))
	} else {
		mailer, err = email.NewPostmarkClient(emailCfg)
		if err != nil {
			return err
		}
	}

	directory, err := hr.NewPGDirectory(pool)
	if err != nil {
		return err
	}

	store, err := notify.NewPGStore(pool)
	if err != nil {
		return err
	}
	prefStore, err := notify.NewPGPreferenceStore(pool)
	if err != nil {
		return err
	}
	preferences, err := notify.NewPreferences(prefStore)
	if err != nil {
		return err
	}

	hub := realtime.NewHub[notify.Notification](appCfg.RealtimeBuffer)
	defer hub.Close()

	emailChannel, err := notify.NewEmailChannel(mailer, directory)
	if err != nil {
		return err
	}

	orchestrator, err := notify.NewOrchestrator(store, preferences,
		notify.WithRealtimeChannel(notify.NewRealtimeChannel(hub)),
		notify.WithEmailChannel(emailChannel),
		notify.WithLogger(log),
	)
	if err != nil {
		return err
	}

	handlers, err := hr.NewHandlers(orchestrator, directory, mailer, log)
	if err != nil {
		return err
	}
	if err := handlers.Register(manager); err != nil {
		return err
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         appCfg.HTTPAddr,
		Handler:      hr.NewRouter(manager, orchestrator, preferences, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", appCfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("http server failed", logger.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}
	if err := manager.Stop(); err != nil {
		log.Error("queue manager shutdown failed", logger.Error(err))
	}

	log.Info("engine stopped cleanly")
	return nil
}
