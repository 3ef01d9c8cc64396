package main

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/mitchellmoss/package-tracker/config"
	"github.com/mitchellmoss/package-tracker/internal/integrations/carrier"
	"github.com/mitchellmoss/package-tracker/internal/models"
	"github.com/mitchellmoss/package-tracker/internal/notify"
	"github.com/mitchellmoss/package-tracker/internal/scheduler"
	"github.com/mitchellmoss/package-tracker/internal/store"
	"github.com/stretchr/testify/require"
)

func redisConfig(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.RedisConfig{Host: host, Port: port}
}

func TestDefaultFactories_RedisStoreByDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{Redis: redisConfig(t, mr)}

	st, closeStore, err := defaultAppFactories().newStore(cfg)
	require.NoError(t, err)
	t.Cleanup(closeStore)

	require.NoError(t, st.SaveAll(context.Background(), []models.TrackedPackage{
		{TrackingNumber: "SHIPPO_TRANSIT", Status: models.StatusTransit},
	}))
	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestDefaultFactories_ProducerAndLimiter(t *testing.T) {
	f := defaultAppFactories()

	require.Nil(t, f.newProducer(&config.Config{}), "no kafka host means no producer")
	require.NotNil(t, f.newProducer(&config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
	}))

	require.Nil(t, f.newRateLimiter(&config.Config{}), "no redis host means no limiter")
	mr := miniredis.RunT(t)
	rl := f.newRateLimiter(&config.Config{Redis: redisConfig(t, mr)})
	require.NotNil(t, rl)

	ok, n, err := rl.Allow(context.Background(), "rl:test", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestDefaultFactories_SelectorByCredentials(t *testing.T) {
	f := defaultAppFactories()

	// Without credentials only the local fake is wired.
	sel := f.newSelector(&config.Config{})
	require.Equal(t, models.CarrierShippo, sel.DefaultCarrier())
	require.True(t, sel.Known(models.CarrierShippo))
	require.False(t, sel.Known(models.CarrierUPS))
	require.False(t, sel.Known(models.CarrierFedEx))

	sel = f.newSelector(&config.Config{
		Tracker: config.TrackerConfig{DefaultCarrier: models.CarrierUPS},
		Carriers: config.CarriersConfig{
			Shippo: config.ShippoConfig{APIToken: "token"},
			UPS:    config.UPSConfig{ClientID: "id", ClientSecret: "secret"},
			FedEx:  config.FedExConfig{APIKey: "key", APISecret: "secret"},
		},
	})
	require.Equal(t, models.CarrierUPS, sel.DefaultCarrier())
	require.True(t, sel.Known(models.CarrierShippo))
	require.True(t, sel.Known(models.CarrierUPS))
	require.True(t, sel.Known(models.CarrierFedEx))
}

func TestRunTracker_StopsOnCancel(t *testing.T) {
	f := appFactories{
		newStore: func(*config.Config) (store.Store, func(), error) {
			return memStore{}, nil, nil
		},
		newProducer:    func(*config.Config) notify.Producer { return nil },
		newRateLimiter: func(*config.Config) scheduler.RateLimiter { return nil },
		newSelector: func(*config.Config) *carrier.Selector {
			return carrier.NewSelector(models.CarrierShippo)
		},
	}

	cfg := &config.Config{
		Tracker: config.TrackerConfig{HTTPAddr: "127.0.0.1:0"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunTracker(ctx, cfg, f) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting tracker to stop")
	case err := <-errCh:
		require.Error(t, err)
	}
}
