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

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/redis/go-redis/v9"

	"github.com/celulas/locator/internal/adapter/geocache"
	httpadapter "github.com/celulas/locator/internal/adapter/http"
	kafkaadapter "github.com/celulas/locator/internal/adapter/kafka"
	"github.com/celulas/locator/internal/adapter/mapbox"
	"github.com/celulas/locator/internal/adapter/nominatim"
	"github.com/celulas/locator/internal/adapter/viacep"
	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/auth"
	"github.com/celulas/locator/internal/catalog"
	"github.com/celulas/locator/internal/config"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
	"github.com/celulas/locator/internal/store"
	"github.com/celulas/locator/internal/suggest"
	"github.com/celulas/locator/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	cat := catalog.New(st, domain.Normalizer{DefaultCategoryID: cfg.DefaultCategory}, cfg.CatalogRefreshInterval, nil, logger, metrics)

	geocoder, closeCache := newGeocoder(ctx, cfg, metrics, logger)
	defer closeCache()

	suggester := suggest.NewService(geocoder, suggest.Options{
		Debounce: cfg.SuggestDebounce,
		MinChars: cfg.SuggestMinChars,
		Limit:    cfg.SuggestLimit,
		Region:   cfg.SearchRegion,
	}, nil, logger, metrics)
	views := view.NewRegistry(cat, suggester, st, cfg.ViewSessionIdle, nil, logger, metrics)

	authn := auth.NewManager(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.SessionTTL, nil, logger, metrics)
	if !cfg.AdminEnabled() {
		logger.Warn("no admin account configured, admin area disabled")
	}

	adminCfg := admin.Config{
		Store:         st,
		Catalog:       cat,
		Geocoder:      geocoder,
		Postal:        viacep.NewClient(cfg.ViaCEPURL, cfg.GeocodeTimeout, metrics, logger),
		GeocodeRegion: cfg.AdminGeocodeRegion,
		Logger:        logger,
		Metrics:       metrics,
	}
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaChangesTopic, metrics, logger)
		adminCfg.Publisher = publisher
		logger.Info("change events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaChangesTopic)
	}
	adm := admin.NewService(adminCfg)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:          []sharedobs.ReadinessChecker{cat, st},
		Groups:         cat,
		Suggest:        suggester,
		Views:          views,
		Auth:           authn,
		Admin:          adm,
		AllowedOrigins: cfg.CORSOrigins,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Keep the catalog fresh, expire idle sessions and close privileged
	// views when their admin signs out.
	go func() {
		if err := cat.Run(ctx); err != nil {
			logger.Error("catalog error", "error", err)
		}
	}()
	go views.Run(ctx)
	go views.Watch(ctx, authn)
	go authn.Run(ctx, time.Minute)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// newGeocoder builds the configured provider behind the configured cache. The
// returned func releases cache connections.
func newGeocoder(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.Geocoder, func()) {
	var provider domain.Geocoder
	switch cfg.GeocoderProvider {
	case config.ProviderMapbox:
		provider = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, metrics, logger)
	default:
		provider = nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, metrics, logger)
	}
	logger.Info("geocoding provider", "provider", cfg.GeocoderProvider, "timeout", cfg.GeocodeTimeout)

	switch cfg.GeocodeCacheBackend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, lookups will bypass the cache until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		logger.Info("geocode cache", "backend", "redis", "addr", cfg.RedisAddr, "ttl", cfg.GeocodeCacheTTL)
		return geocache.NewRedis(provider, client, cfg.GeocodeCacheTTL, metrics, logger), func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}
	case config.CacheMemory:
		logger.Info("geocode cache", "backend", "memory", "size", cfg.GeocodeCacheSize)
		return geocache.NewMemory(provider, cfg.GeocodeCacheSize, metrics, logger), func() {}
	default:
		logger.Info("geocode cache disabled")
		return provider, func() {}
	}
}
