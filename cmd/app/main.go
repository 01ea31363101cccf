package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"community-subscription-bot/internal/application"
	"community-subscription-bot/internal/config"
	"community-subscription-bot/internal/domain/ports/adapter"
	payAdapters "community-subscription-bot/internal/infra/adapters/payment"
	tele "community-subscription-bot/internal/infra/adapters/telegram"
	"community-subscription-bot/internal/infra/api"
	pg "community-subscription-bot/internal/infra/db/postgres"
	"community-subscription-bot/internal/infra/i18n"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
	red "community-subscription-bot/internal/infra/redis"
	"community-subscription-bot/internal/infra/sched"
	"community-subscription-bot/internal/infra/scheduler"
	"community-subscription-bot/internal/infra/worker"
	"community-subscription-bot/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type bot interface {
	adapter.Messenger
	StartPolling(ctx context.Context) error
	StopPolling()
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: noop bot and payment provider when not configured")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
	logger.Info().Msg("bye")
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	// ---- Postgres ----
	if cfg.Database.MigrateOnRun {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewUserRepo(pool), redisClient, cfg.Redis.TTL, logger)
	subRepo := pg.NewSubscriptionRepo(pool)
	ledgerRepo := pg.NewPaymentLedgerRepo(pool)
	notifRepo := pg.NewNotificationLogRepo(pool)
	materialRepo := pg.NewMaterialRepo(pool)

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Lang)
	if err != nil {
		return err
	}

	// ---- Telegram ----
	var messenger bot
	var realBot *tele.RealTelegramBotAdapter
	if cfg.Bot.Token == "" {
		logger.Warn().Msg("bot.token not set, using noop bot")
		messenger = tele.NewNoopBotAdapter(logger)
	} else {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, &cfg.Community, rateLimiter, tr, logger)
		if err != nil {
			return err
		}
		messenger = realBot
	}

	// ---- Payments ----
	providers, err := paymentProviders(cfg, logger)
	if err != nil {
		return err
	}
	hookPool := worker.NewPool(cfg.Payment.HookWorkers, logger)
	hooks := []usecase.PostCommitHook{
		usecase.NewInviteHook(messenger, tr, cfg.Community.ChannelID, cfg.Community.ChatID, cfg.Community.InviteTTL, logger),
		usecase.NewConfirmationHook(messenger, tr),
	}

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, tm, logger)
	entUC := usecase.NewEntitlementUseCase(subRepo, userRepo, tm, logger)
	payUC := usecase.NewPaymentUseCase(providers, userRepo, ledgerRepo, entUC, tm, locker, hooks, hookPool, logger)
	memberUC := usecase.NewMembershipUseCase(userRepo, subRepo, messenger, cfg.Community.GroupID, cfg.Bot.CallTimeout, logger)
	notifUC := usecase.NewNotificationUseCase(subRepo, notifRepo, userRepo, messenger, tr, cfg.Scheduler.ExpiryWindow, logger)
	materialUC := usecase.NewMaterialUseCase(materialRepo, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, subRepo, logger)

	if realBot != nil {
		realBot.SetFacade(application.NewBotFacade(userUC, entUC, payUC, memberUC, tr, cfg.Payment.Default, cfg.Community.CustomerMail))
	}

	// ---- Scheduled jobs ----
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Scheduler.Timezone).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}
	cron := scheduler.NewScheduler(loc, cfg.Scheduler.RunTimeout, logger)
	if err := cron.AddCron("expiry_reminders", cfg.Scheduler.ExpiryCheckCron, sched.NewExpiryWorker(notifUC, logger).RunOnce); err != nil {
		return err
	}
	if err := cron.AddInterval("db_pool_stats", 30*time.Second, poolStatsJob(pool)); err != nil {
		return err
	}
	if err := cron.AddInterval("subscription_gauges", 5*time.Minute, func(ctx context.Context) error {
		_, err := statsUC.Totals(ctx, time.Now())
		return err
	}); err != nil {
		return err
	}
	membership := sched.NewMembershipWorker(cfg.Scheduler.MembershipInterval, cfg.Scheduler.RunTimeout, memberUC, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.SessionTTL)
	server := api.NewServer(api.Deps{
		Users:     userUC,
		Ents:      entUC,
		Payments:  payUC,
		Materials: materialUC,
		Stats:     statsUC,
	}, api.Options{
		Port:           cfg.HTTP.Port,
		BotToken:       cfg.Bot.Token,
		AdminIDs:       cfg.Bot.AdminIDs,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, auth, rateLimiter, logger)

	hookPool.Start(ctx)
	defer hookPool.Stop()
	cron.Start(ctx)
	defer cron.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error {
		err := messenger.StartPolling(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		messenger.StopPolling()
		return nil
	})
	g.Go(func() error {
		if err := membership.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("shutdown requested")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// paymentProviders builds every configured provider. The noop provider is
// only available in dev mode.
func paymentProviders(cfg *config.Config, logger *zerolog.Logger) ([]adapter.PaymentProvider, error) {
	var out []adapter.PaymentProvider
	pc := cfg.Payment
	if pc.CloudPayments.PublicID != "" {
		cp, err := payAdapters.NewCloudPayments(pc.CloudPayments.PublicID, pc.CloudPayments.APISecret, pc.CloudPayments.BaseURL,
			&http.Client{Timeout: 15 * time.Second})
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if pc.Redirect.MerchantID != "" {
		sr, err := payAdapters.NewSignedRedirect(pc.Redirect.MerchantID, pc.Redirect.Secret, pc.Redirect.PayURL, pc.Redirect.ResultURL)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	if cfg.Runtime.Dev {
		out = append(out, payAdapters.NewNoopPaymentProvider())
	}

	names := make([]string, 0, len(out))
	found := false
	for _, p := range out {
		names = append(names, p.Name())
		found = found || p.Name() == pc.Default
	}
	if !found {
		if !cfg.Runtime.Dev {
			return nil, errors.New("payment.default names a provider that is not configured")
		}
		logger.Warn().Str("default", pc.Default).Msg("default payment provider not configured, bot checkout uses noop")
		cfg.Payment.Default = "noop"
	}
	logger.Info().Strs("providers", names).Str("default", cfg.Payment.Default).Msg("payment providers ready")
	return out, nil
}

func poolStatsJob(pool *pgxpool.Pool) scheduler.JobFunc {
	return func(context.Context) error {
		st := pool.Stat()
		metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		return nil
	}
}
