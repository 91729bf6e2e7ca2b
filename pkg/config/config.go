package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Ingest   IngestConfig
	Sources  SourcesConfig
	Schedule ScheduleConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// IngestConfig tunes the ingestion cycle: fetch parallelism, timeouts and
// how far ahead the pipeline looks for events.
type IngestConfig struct {
	Concurrency   int
	SourceTimeout time.Duration
	CycleTimeout  time.Duration
	HorizonMonths int
	UserAgent     string
	Timezone      string
}

// SourcesConfig holds the fixed endpoints for the scraped sources and the
// credentials for the two platform APIs.
type SourcesConfig struct {
	CityCalendarURL string
	LibraryURL      string
	MuseumURL       string
	UniversityURL   string
	RecreationURL   string
	CommonURL       string

	Eventbrite PlatformConfig
	Meetup     PlatformConfig
}

// PlatformConfig configures an authenticated event-platform API adapter.
type PlatformConfig struct {
	Enabled     bool
	BaseURL     string
	Token       string
	Location    string
	RadiusMiles int
}

// ScheduleConfig holds the cron expressions driving the two entry points.
type ScheduleConfig struct {
	Enabled     bool
	IngestSpecs []string
	PruneSpec   string
}

// CacheConfig governs read-API response caching.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Running without a .env file is fine; env vars and defaults cover it.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ingest = IngestConfig{
		Concurrency:   v.GetInt("INGEST_CONCURRENCY"),
		SourceTimeout: parseDuration(v.GetString("INGEST_SOURCE_TIMEOUT"), 30*time.Second),
		CycleTimeout:  parseDuration(v.GetString("INGEST_CYCLE_TIMEOUT"), 10*time.Minute),
		HorizonMonths: v.GetInt("INGEST_HORIZON_MONTHS"),
		UserAgent:     v.GetString("INGEST_USER_AGENT"),
		Timezone:      v.GetString("INGEST_TIMEZONE"),
	}

	cfg.Sources = SourcesConfig{
		CityCalendarURL: v.GetString("SOURCE_CITY_CALENDAR_URL"),
		LibraryURL:      v.GetString("SOURCE_LIBRARY_URL"),
		MuseumURL:       v.GetString("SOURCE_MUSEUM_URL"),
		UniversityURL:   v.GetString("SOURCE_UNIVERSITY_URL"),
		RecreationURL:   v.GetString("SOURCE_RECREATION_URL"),
		CommonURL:       v.GetString("SOURCE_COMMON_URL"),
		Eventbrite: PlatformConfig{
			Enabled:     v.GetBool("EVENTBRITE_ENABLED"),
			BaseURL:     v.GetString("EVENTBRITE_BASE_URL"),
			Token:       v.GetString("EVENTBRITE_TOKEN"),
			Location:    v.GetString("EVENTBRITE_LOCATION"),
			RadiusMiles: v.GetInt("EVENTBRITE_RADIUS_MILES"),
		},
		Meetup: PlatformConfig{
			Enabled:     v.GetBool("MEETUP_ENABLED"),
			BaseURL:     v.GetString("MEETUP_BASE_URL"),
			Token:       v.GetString("MEETUP_TOKEN"),
			Location:    v.GetString("MEETUP_LOCATION"),
			RadiusMiles: v.GetInt("MEETUP_RADIUS_MILES"),
		},
	}

	cfg.Schedule = ScheduleConfig{
		Enabled:     v.GetBool("SCHEDULE_ENABLED"),
		IngestSpecs: splitAndTrim(v.GetString("SCHEDULE_INGEST_SPECS")),
		PruneSpec:   v.GetString("SCHEDULE_PRUNE_SPEC"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "waltham_events")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("INGEST_CONCURRENCY", 4)
	v.SetDefault("INGEST_SOURCE_TIMEOUT", "30s")
	v.SetDefault("INGEST_CYCLE_TIMEOUT", "10m")
	v.SetDefault("INGEST_HORIZON_MONTHS", 6)
	v.SetDefault("INGEST_USER_AGENT", "waltham-events-harvester/1.0 (+https://github.com/civicsignal/waltham-events)")
	v.SetDefault("INGEST_TIMEZONE", "America/New_York")

	v.SetDefault("SOURCE_CITY_CALENDAR_URL", "https://www.city.waltham.ma.us/calendar")
	v.SetDefault("SOURCE_LIBRARY_URL", "https://waltham.lib.ma.us/programs/")
	v.SetDefault("SOURCE_MUSEUM_URL", "https://www.charlesrivermuseum.org/events")
	v.SetDefault("SOURCE_UNIVERSITY_URL", "https://www.brandeis.edu/events/")
	v.SetDefault("SOURCE_RECREATION_URL", "https://www.city.waltham.ma.us/recreation-department")
	v.SetDefault("SOURCE_COMMON_URL", "https://www.city.waltham.ma.us/waltham-common")

	v.SetDefault("EVENTBRITE_ENABLED", false)
	v.SetDefault("EVENTBRITE_BASE_URL", "https://www.eventbriteapi.com/v3")
	v.SetDefault("EVENTBRITE_TOKEN", "")
	v.SetDefault("EVENTBRITE_LOCATION", "Waltham, MA")
	v.SetDefault("EVENTBRITE_RADIUS_MILES", 5)

	v.SetDefault("MEETUP_ENABLED", false)
	v.SetDefault("MEETUP_BASE_URL", "https://api.meetup.com")
	v.SetDefault("MEETUP_TOKEN", "")
	v.SetDefault("MEETUP_LOCATION", "us--ma--waltham")
	v.SetDefault("MEETUP_RADIUS_MILES", 5)

	v.SetDefault("SCHEDULE_ENABLED", true)
	v.SetDefault("SCHEDULE_INGEST_SPECS", "0 6 * * *,0 18 * * *")
	v.SetDefault("SCHEDULE_PRUNE_SPEC", "0 3 * * 0")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
