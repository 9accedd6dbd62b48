package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/celulas/locator/internal/domain"
)

// Supported values for the enumerated settings.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderNominatim = "nominatim"
	ProviderMapbox    = "mapbox"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	CORSOrigins     []string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseDriver         string
	DatabaseURL            string
	CatalogRefreshInterval time.Duration
	DefaultCategory        string

	// Geocoding.
	GeocoderProvider    string
	NominatimURL        string
	NominatimUserAgent  string
	MapboxToken         string
	GeocodeTimeout      time.Duration
	GeocodeCacheBackend string
	GeocodeCacheSize    int
	GeocodeCacheTTL     time.Duration
	RedisAddr           string
	SearchRegion        string
	AdminGeocodeRegion  string
	SuggestDebounce     time.Duration
	SuggestMinChars     int
	SuggestLimit        int
	ViaCEPURL           string

	// Admin and view sessions.
	AdminEmail        string
	AdminPasswordHash string
	SessionTTL        time.Duration
	ViewSessionIdle   time.Duration

	// Change events.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaChangesTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		CORSOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseDriver:         strings.ToLower(sharedcfg.EnvOrDefault("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:            sharedcfg.EnvOrDefault("DATABASE_URL", "file:locator.db"),
		CatalogRefreshInterval: p.duration("CATALOG_REFRESH_INTERVAL", "5m"),
		DefaultCategory:        strings.ToLower(sharedcfg.EnvOrDefault("DEFAULT_CATEGORY", domain.DefaultCategoryID)),

		GeocoderProvider:    strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", ProviderNominatim)),
		NominatimURL:        sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent:  sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "celulas-locator/1.0"),
		MapboxToken:         os.Getenv("MAPBOX_TOKEN"),
		GeocodeTimeout:      p.duration("GEOCODE_TIMEOUT", "5s"),
		GeocodeCacheBackend: strings.ToLower(sharedcfg.EnvOrDefault("GEOCODE_CACHE_BACKEND", CacheMemory)),
		GeocodeCacheSize:    p.positiveInt("GEOCODE_CACHE_SIZE", "1000"),
		GeocodeCacheTTL:     p.duration("GEOCODE_CACHE_TTL", "24h"),
		RedisAddr:           sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		SearchRegion:        sharedcfg.EnvOrDefault("SEARCH_REGION", "Estado de São Paulo, Brazil"),
		AdminGeocodeRegion:  sharedcfg.EnvOrDefault("ADMIN_GEOCODE_REGION", "São Paulo, Brazil"),
		SuggestDebounce:     p.duration("SUGGEST_DEBOUNCE", "500ms"),
		SuggestMinChars:     p.positiveInt("SUGGEST_MIN_CHARS", "3"),
		SuggestLimit:        p.positiveInt("SUGGEST_LIMIT", "5"),
		ViaCEPURL:           sharedcfg.EnvOrDefault("VIACEP_URL", "https://viacep.com.br/ws"),

		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		SessionTTL:        p.duration("SESSION_TTL", "12h"),
		ViewSessionIdle:   p.duration("VIEW_SESSION_IDLE", "30m"),

		KafkaEnabled:      p.boolean("KAFKA_ENABLED", "false"),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaChangesTopic: sharedcfg.EnvOrDefault("KAFKA_CHANGES_TOPIC", "locator-changes"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if _, ok := domain.LookupCategory(c.DefaultCategory); !ok {
		return fmt.Errorf("invalid DEFAULT_CATEGORY %q", c.DefaultCategory)
	}
	switch c.GeocoderProvider {
	case ProviderNominatim:
	case ProviderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("invalid GEOCODER_PROVIDER %q", c.GeocoderProvider)
	}
	switch c.GeocodeCacheBackend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("GEOCODE_CACHE_BACKEND is redis but REDIS_ADDR is not set")
		}
	default:
		return fmt.Errorf("invalid GEOCODE_CACHE_BACKEND %q", c.GeocodeCacheBackend)
	}
	if (c.AdminEmail == "") != (c.AdminPasswordHash == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD_HASH must be set together")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaChangesTopic == "" {
			return errors.New("KAFKA_CHANGES_TOPIC is required")
		}
	}
	return nil
}

// AdminEnabled reports whether an admin account is configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminEmail != "" && c.AdminPasswordHash != ""
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser records the first malformed variable so Load can report it once.
type parser struct {
	err error
}

func (p *parser) duration(key, def string) time.Duration {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(fmt.Errorf("invalid %s %q", key, s))
		return 0
	}
	return d
}

func (p *parser) positiveInt(key, def string) int {
	s := sharedcfg.EnvOrDefault(key, def)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(fmt.Errorf("invalid %s %q", key, s))
		return 0
	}
	return n
}

func (p *parser) boolean(key, def string) bool {
	s := sharedcfg.EnvOrDefault(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q", key, s))
		return false
	}
	return b
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
