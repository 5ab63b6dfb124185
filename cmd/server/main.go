// Command server runs the billing API: processor webhook ingestion, the
// checkout verifier, operator review endpoints, and tenant subscription
// reads, backed by Postgres with a Redis cache and push channel.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	billingmod "github.com/HassanRashid15/CarWashApp-sub001/modules/billing"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/broadcast"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/config"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/email"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/httpserver"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/logger"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/payment"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/pg"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/plan"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/redis"
	"github.com/HassanRashid15/CarWashApp-sub001/pkg/subscription"
	"github.com/HassanRashid15/CarWashApp-sub001/svc/billing"
)

type appConfig struct {
	Environment    string        `env:"APP_ENV" envDefault:"development"`
	ServiceName    string        `env:"APP_NAME" envDefault:"billing-api"`
	PlanCatalog    string        `env:"PLAN_CATALOG_PATH"`
	ReminderWindow time.Duration `env:"TRIAL_REMINDER_WINDOW" envDefault:"72h"`
	ReminderGap    time.Duration `env:"TRIAL_REMINDER_MIN_GAP" envDefault:"24h"`
	ReminderSweep  time.Duration `env:"TRIAL_REMINDER_SWEEP" envDefault:"1h"`
	DevEmailDir    string        `env:"DEV_EMAIL_DIR" envDefault:"./tmp/emails"`
}

func main() {
	ctx := context.Background()

	var (
		app        appConfig
		pgCfg      pg.Config
		redisCfg   redis.Config
		emailCfg   email.Config
		paddleCfg  payment.PaddleConfig
		billingCfg billing.Config
		httpCfg    httpserver.Config
	)
	config.MustLoad(&app)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&paddleCfg)
	config.MustLoad(&billingCfg)
	config.MustLoad(&httpCfg)

	log := logger.New(logger.WithEnvironment(app.Environment, app.ServiceName))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "postgres connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.ErrorContext(ctx, "migrations failed", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "redis connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	catalog := plan.Default()
	if app.PlanCatalog != "" {
		catalog, err = plan.LoadFile(app.PlanCatalog)
		if err != nil {
			log.ErrorContext(ctx, "plan catalog load failed", logger.Error(err))
			os.Exit(1)
		}
	}

	provider, err := payment.NewPaddleProvider(paddleCfg)
	if err != nil {
		log.ErrorContext(ctx, "paddle provider init failed", logger.Error(err))
		os.Exit(1)
	}

	var sender email.Sender
	if emailCfg.PostmarkServerToken != "" {
		sender, err = email.NewPostmarkSender(emailCfg)
		if err != nil {
			log.ErrorContext(ctx, "postmark sender init failed", logger.Error(err))
			os.Exit(1)
		}
	} else {
		sender = email.NewDevSender(app.DevEmailDir)
		log.WarnContext(ctx, "no postmark token set, writing emails to disk")
	}

	bus, err := broadcast.NewRedisBroadcaster[billing.StatusChange](redisClient, "billing:status", billingCfg.WatchBuffer, log)
	if err != nil {
		log.ErrorContext(ctx, "status broadcaster init failed", logger.Error(err))
		os.Exit(1)
	}

	svc := billing.NewService(billingCfg, subscription.NewPostgresStore(pool), catalog, provider,
		billing.WithCache(subscription.NewRedisCache(redisClient, log)),
		billing.WithBroadcaster(bus),
		billing.WithEmailSender(sender),
		billing.WithLogger(log),
	)
	defer func() { _ = svc.Close() }()

	go remindTrials(ctx, svc, app, log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool), redis.Healthcheck(redisClient)))
	r.Mount("/billing", billingmod.Router(billingmod.RouterOptions{Service: svc, Catalog: catalog}))

	if err := httpserver.Run(ctx, httpCfg, r, log); err != nil {
		log.ErrorContext(ctx, "http server failed", logger.Error(err))
		os.Exit(1)
	}
}

// remindTrials periodically sweeps expiring trials and emails their owners.
func remindTrials(ctx context.Context, svc *billing.Service, app appConfig, log *slog.Logger) {
	ticker := time.NewTicker(app.ReminderSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, err := svc.SendTrialReminders(ctx, app.ReminderWindow, app.ReminderGap)
			if err != nil {
				log.ErrorContext(ctx, "trial reminder sweep failed", logger.Error(err))
				continue
			}
			if sent > 0 {
				log.InfoContext(ctx, "trial reminders sent", "count", sent)
			}
		}
	}
}
