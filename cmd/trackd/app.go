package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitchellmoss/package-tracker/config"
	"github.com/mitchellmoss/package-tracker/internal/broker/kafka"
	"github.com/mitchellmoss/package-tracker/internal/cache/rediscache"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier/fake"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier/fedexhttp"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier/shippohttp"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier/upshttp"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/mitchellmoss/package-tracker/internal/notify"
	"github.com/mitchellmoss/package-tracker/internal/registry"
	"github.com/mitchellmoss/package-tracker/internal/scheduler"
	"github.com/mitchellmoss/package-tracker/internal/store"
	"github.com/mitchellmoss/package-tracker/internal/store/pgstore"
	"github.com/mitchellmoss/package-tracker/internal/store/redisstore"
	"github.com/mitchellmoss/package-tracker/internal/webhook"
)

const saveInterval = 30 * time.Second

type appFactories struct {
	newStore       func(cfg *config.Config) (store.Store, func(), error)
	newProducer    func(cfg *config.Config) notify.Producer
	newRateLimiter func(cfg *config.Config) scheduler.RateLimiter
	newSelector    func(cfg *config.Config) *carrier.Selector
}

func defaultAppFactories() appFactories {
	return appFactories{
		newStore: func(cfg *config.Config) (store.Store, func(), error) {
			switch cfg.Tracker.StoreBackend {
			case "postgres":
				sslMode := cfg.Database.SSLMode
				if sslMode == "" {
					sslMode = "disable"
				}
				connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
					cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
				st, err := pgstore.New(connString)
				if err != nil {
					return nil, nil, err
				}
				return st, st.Close, nil
			default:
				redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
				st := redisstore.New(redisAddr).WithKey(cfg.Tracker.StoreKey)
				return st, func() { _ = st.Close() }, nil
			}
		},
		newProducer: func(cfg *config.Config) notify.Producer {
			if cfg.Kafka.Host == "" {
				return nil
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) scheduler.RateLimiter {
			if cfg.Redis.Host == "" {
				return nil
			}
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newSelector: func(cfg *config.Config) *carrier.Selector {
			defaultCarrier := cfg.Tracker.DefaultCarrier
			if defaultCarrier == "" {
				defaultCarrier = models.CarrierShippo
			}
			sel := carrier.NewSelector(defaultCarrier)

			if cfg.Carriers.Shippo.APIToken != "" {
				sel.Register(models.CarrierShippo, shippohttp.New(cfg.Carriers.Shippo.BaseURL, cfg.Carriers.Shippo.APIToken))
			} else {
				// No credentials: use the local fake so dev setups work
				// out of the box.
				sel.Register(models.CarrierShippo, fake.New())
			}
			if cfg.Carriers.UPS.ClientID != "" {
				sel.Register(models.CarrierUPS, upshttp.New(cfg.Carriers.UPS.BaseURL, cfg.Carriers.UPS.ClientID, cfg.Carriers.UPS.ClientSecret))
			}
			if cfg.Carriers.FedEx.APIKey != "" {
				sel.Register(models.CarrierFedEx, fedexhttp.New(cfg.Carriers.FedEx.BaseURL, cfg.Carriers.FedEx.APIKey, cfg.Carriers.FedEx.APISecret))
			}
			return sel
		},
	}
}

func RunTracker(ctx context.Context, cfg *config.Config, f appFactories) error {
	st, closeStore, err := f.newStore(cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	sinks := notify.Fanout{notify.LogSink{}}
	producer := f.newProducer(cfg)
	if producer != nil && cfg.Kafka.StatusChangedTopicName != "" {
		sinks = append(sinks, notify.NewKafkaSink(producer, cfg.Kafka.StatusChangedTopicName))
	}

	reg := registry.New(st).WithNotifier(sinks)
	if err := reg.Load(ctx); err != nil {
		// Стартуем с пустым реестром, а не падаем: следующий save догонит.
		slog.Error("load registry, starting empty", "error", err.Error())
	}

	sel := f.newSelector(cfg)
	sched := scheduler.New(reg, sel).
		WithSettings(
			time.Duration(cfg.Tracker.RefreshIntervalSeconds)*time.Second,
			time.Duration(cfg.Tracker.DrainIntervalSeconds)*time.Second,
			time.Duration(cfg.Tracker.RetrySweepSeconds)*time.Second,
			time.Duration(cfg.Tracker.RetryDelaySeconds)*time.Second,
			time.Duration(cfg.Tracker.FetchTimeoutSeconds)*time.Second,
			cfg.Tracker.Concurrency,
		).
		WithRateLimiter(f.newRateLimiter(cfg), int64(cfg.Tracker.RateLimitPerMinute)).
		WithFailureSink(sinks)

	ingestor := webhook.New(reg)

	if cfg.Kafka.Host != "" && cfg.Kafka.WebhookTopicName != "" {
		brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
		consumer := kafka.NewConsumer(brokers, cfg.Kafka.WebhookTopicName, cfg.Kafka.WebhookConsumerGroup)
		go func() {
			slog.Info("webhook kafka intake started", "topic", cfg.Kafka.WebhookTopicName)
			if err := consumer.Consume(ctx, func(_key, value []byte) error {
				if err := ingestor.IngestRaw(value); err != nil {
					slog.Error("ingest webhook message", "error", err.Error())
				}
				// Malformed события не должны останавливать consumer.
				return nil
			}); err != nil && ctx.Err() == nil {
				slog.Error("webhook kafka intake stopped", "error", err.Error())
			}
		}()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpOpts{
			httpAddr:  cfg.Tracker.HTTPAddr,
			registry:  reg,
			scheduler: sched,
			ingestor:  ingestor,
			carriers:  sel,
		})
	}()

	// Periodic save so poll results survive a crash between mutations.
	go func() {
		t := time.NewTicker(saveInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				reg.SaveBestEffort(ctx)
			}
		}
	}()

	defer func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		reg.SaveBestEffort(saveCtx)
	}()

	schedErr := make(chan error, 1)
	go func() {
		schedErr <- sched.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-schedErr:
		return err
	case err := <-httpErr:
		return err
	}
}
