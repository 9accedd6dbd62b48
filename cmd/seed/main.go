// Command seed loads supervisors, coordinators and groups from a YAML file
// into the backend store.
//
// Usage:
//
//	go run ./cmd/seed --file seeds/example.yaml --geocode
//
// Records go through the same normalization as the admin area unless --raw
// is given. Geocoder and logging settings come from the service environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jessevdk/go-flags"

	"github.com/celulas/locator/internal/adapter/mapbox"
	"github.com/celulas/locator/internal/adapter/nominatim"
	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/catalog"
	"github.com/celulas/locator/internal/config"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
	"github.com/celulas/locator/internal/seed"
	"github.com/celulas/locator/internal/store"
)

type Options struct {
	File    string `short:"f" long:"file" description:"Seed file path" required:"true"`
	Driver  string `long:"driver" env:"DATABASE_DRIVER" description:"Database driver" choice:"sqlite" choice:"postgres" default:"sqlite"`
	DSN     string `long:"dsn" env:"DATABASE_URL" description:"Database connection string" default:"file:locator.db"`
	Geocode bool   `short:"g" long:"geocode" description:"Resolve coordinates for groups that have none"`
	Raw     bool   `long:"raw" description:"Insert records exactly as written"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	ctx := context.Background()

	in, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer in.Close()

	file, err := seed.Parse(in)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, opts.Driver, opts.DSN, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var geocoder domain.Geocoder
	switch cfg.GeocoderProvider {
	case config.ProviderMapbox:
		geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, metrics, logger)
	default:
		geocoder = nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, metrics, logger)
	}

	cat := catalog.New(st, domain.Normalizer{DefaultCategoryID: cfg.DefaultCategory}, cfg.CatalogRefreshInterval, nil, logger, metrics)
	adm := admin.NewService(admin.Config{
		Store:         st,
		Catalog:       cat,
		Geocoder:      geocoder,
		GeocodeRegion: cfg.AdminGeocodeRegion,
		Logger:        logger,
		Metrics:       metrics,
	})

	var writer seed.Writer = adm
	if opts.Raw {
		writer = seed.Direct(st)
	}
	var resolver seed.AddressResolver
	if opts.Geocode {
		resolver = adm
	}

	res, err := seed.Apply(ctx, writer, resolver, file, logger)
	if err != nil {
		return err
	}

	logger.Info("seed applied",
		slog.Int("supervisors", res.Supervisors),
		slog.Int("coordinators", res.Coordinators),
		slog.Int("groups", res.Groups),
		slog.Int("geocoded", res.Geocoded),
	)
	for _, name := range res.Unlocated {
		logger.Warn("group has no coordinates and will not appear on the map", "group", name)
	}
	return nil
}
