package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/config"
	"github.com/Nozer-Taz/isco-bot/internal/lock"
	"github.com/Nozer-Taz/isco-bot/internal/notify"
	"github.com/Nozer-Taz/isco-bot/internal/reconcile"
	"github.com/Nozer-Taz/isco-bot/internal/scheduler"
	"github.com/Nozer-Taz/isco-bot/internal/store"
	"github.com/Nozer-Taz/isco-bot/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component and their startup and shutdown order.
type App struct {
	cfg config.Config
	log *zap.Logger
	bot *tgbotapi.BotAPI

	repo    store.Repo
	redis   *lock.Redis
	sched   *scheduler.Scheduler
	engine  *reconcile.Engine
	router  *telegram.Router
	cron    *cron.Cron
	httpSrv *http.Server
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := telegram.NewBot(cfg.BotToken, cfg.SendTimeout)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram authorized", zap.String("bot", bot.Self.UserName))
	return &App{cfg: cfg, log: log, bot: bot}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("starting isco-bot",
		zap.String("db_driver", a.cfg.DBDriver),
		zap.String("timezone", a.cfg.Timezone),
		zap.String("http", a.cfg.HTTPAddr),
	)
	defer a.shutdown()

	if err := a.start(ctx); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()
			return nil

		case upd, ok := <-updCh:
			if !ok {
				return nil
			}
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// start brings components up in dependency order. Whatever was started
// before a failure is torn down by shutdown.
func (a *App) start(ctx context.Context) error {
	loc := a.cfg.Location()

	repo, err := store.Open(ctx, store.Options{
		Driver:     a.cfg.DBDriver,
		SQLitePath: a.cfg.DBPath,
		Postgres: store.PostgresConfig{
			DSN:      a.cfg.DatabaseURL,
			Host:     a.cfg.DBHost,
			Port:     a.cfg.DBPort,
			User:     a.cfg.DBUser,
			Password: a.cfg.DBPass,
			Database: a.cfg.DBName,
			SSLMode:  a.cfg.DBSSLMode,
		},
	}, a.log)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = repo

	var locker lock.Locker = lock.NewLocal()
	if a.cfg.RedisAddr != "" {
		a.redis, err = lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		}, a.log)
		if err != nil {
			a.log.Error("redis connect failed", zap.Error(err))
			return err
		}
		locker = a.redis
	}

	a.sched = scheduler.New(scheduler.Config{
		MisfireGrace: a.cfg.MisfireGrace(),
		Coalesce:     a.cfg.CoalesceMisfires,
	}, a.log.Named("scheduler"))

	dispatcher := notify.NewDispatcher(telegram.NewSender(a.bot, a.log.Named("sender")), repo, a.log.Named("notify"), notify.Options{
		Rate:        a.cfg.SendRate,
		SendTimeout: a.cfg.SendTimeout,
		Locker:      locker,
	})
	a.engine = reconcile.New(repo, dispatcher, a.sched, locker, a.log.Named("reconcile"), reconcile.Options{
		Location:   loc,
		StaleAfter: a.cfg.StaleEventAfter,
	})

	if err := a.sched.Start(ctx, a.engine.Fire); err != nil {
		return err
	}
	if err := a.engine.ReconcileAll(ctx); err != nil {
		a.log.Error("startup reconciliation failed", zap.Error(err))
		return err
	}

	if a.cfg.ResyncSpec != "" {
		a.cron = cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := a.cron.AddFunc(a.cfg.ResyncSpec, func() {
			if err := a.engine.Resync(ctx); err != nil {
				a.log.Error("resync failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("RESYNC_SPEC: %w", err)
		}
		a.cron.Start()
		a.log.Info("periodic resync enabled", zap.String("spec", a.cfg.ResyncSpec))
	}

	a.router = telegram.NewRouter(a.bot, a.log.Named("telegram"), repo, a.engine, telegram.Options{
		AdminID:  a.cfg.AdminID,
		Location: loc,
	})

	if a.cfg.HTTPAddr != "" {
		a.httpSrv = &http.Server{
			Addr:         a.cfg.HTTPAddr,
			Handler:      newHTTPHandler(repo, a.log),
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server error", zap.Error(err))
			}
		}()
	}
	return nil
}

// shutdown stops components in reverse order of start.
func (a *App) shutdown() {
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-shCtx.Done():
		}
	}
	if a.router != nil {
		a.router.Wait()
	}
	if a.sched != nil {
		if err := a.sched.Shutdown(shCtx); err != nil {
			a.log.Warn("scheduler shutdown error", zap.Error(err))
		}
	}
	if a.httpSrv != nil {
		if err := a.httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
	a.log.Info("shutdown complete")
}
