// Command lumen-bot runs the matchmaking bot.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/lumen/internal/app"
	"github.com/and161185/lumen/internal/bot"
	"github.com/and161185/lumen/internal/config"
	"github.com/and161185/lumen/internal/lease"
	"github.com/and161185/lumen/internal/repository/tables"
	grpcserver "github.com/and161185/lumen/internal/server/grpc"
	"github.com/and161185/lumen/internal/service"
	"github.com/and161185/lumen/internal/transport/telegram"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const healthCheckInterval = 30 * time.Second

// main loads configuration, opens the store and runs the event loop until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		// logger is not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("store", cfg.Store.Backend),
		zap.String("lease", cfg.Lease.Backend),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	lb, closeLease, err := app.OpenLease(ctx, cfg.Lease, cfg.Store.DSN, store, logger)
	if err != nil {
		logger.Fatal("open lease", zap.Error(err))
	}
	defer closeLease()
	var locker *lease.Locker
	if lb != nil {
		locker = lease.NewLocker(lb, cfg.Lease.TTL, cfg.Lease.Wait, logger)
	}

	tg, err := telegram.New(cfg.Token, logger)
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}

	// Repositories
	presence := tables.NewPresenceRepo(store)
	meta := tables.NewDialogMetaRepo(store)
	dialogRepo := tables.NewDialogRepo(store)
	messages := tables.NewMessageRepo(store)
	users := tables.NewUserRepo(store)
	prefs := tables.NewPreferenceRepo(store)

	// Services
	screens := service.NewScreenController(presence, tg, service.NewDialogRenderer(dialogRepo, messages, users), locker, logger)
	throttler := service.NewThrottler(dialogRepo, meta, presence, users, screens, tg, locker, service.ThrottleConfig{
		ActiveWindow:      cfg.Throttle.ActiveWindow,
		NotifyCooldown:    cfg.Throttle.NotifyCooldown,
		PresenceFreshness: cfg.Throttle.PresenceFreshness,
	}, logger)
	dialogs := service.NewDialogs(dialogRepo, messages, meta, users, screens, throttler, logger)
	matching := service.NewMatching(users, prefs, dialogRepo, screens, dialogs, logger)
	onboarding := service.NewOnboarding(users, screens, dialogs, logger)

	disp := bot.NewDispatcher(screens, onboarding, matching, dialogs, tg, logger)
	handler := bot.Chain(disp.Handle, bot.Recover(logger), bot.Logging(logger))
	runner := bot.NewRunner(tg, handler, cfg.Concurrency, cfg.HandlerTimeout, logger)

	// Health
	var hs *grpcserver.Server
	if cfg.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
		hs = grpcserver.New(logger)
		go func() {
			if err := hs.Serve(lis); err != nil {
				logger.Error("health server", zap.Error(err))
			}
		}()
		go hs.Monitor(ctx, healthCheckInterval, store.Ping)
	}

	if err := runner.Run(ctx); err != nil {
		logger.Error("event loop", zap.Error(err))
	}

	if hs != nil {
		hs.Shutdown(5 * time.Second)
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
