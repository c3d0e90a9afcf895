// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"practice-insights/models"
)

func init() {
	godotenv.Load()
}

type (
	Config struct {
		App      App
		Analysis models.Config
		Redis    Redis
		Minio    Minio
		Postgres Postgres
		Logger   Logger
	}
	App struct {
		Env            string `validate:"oneof=development production test"`
		Port           string `validate:"required"`
		EndpointPrefix string `validate:"required,startswith=/"`
		MaxRequests    int    `validate:"gte=1"`
		// BodyLimitInMegabyte caps multipart uploads.
		BodyLimitInMegabyte int `validate:"gte=1"`
		ShutdownTimeout     int `validate:"gte=0"`
		ShareTTLInDays      int `validate:"gte=1"`
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int `validate:"gte=0"`
	}
	Minio struct {
		Host       string
		Port       string
		Username   string
		Password   string
		BucketName string
		UseSSL     bool
	}
	Postgres struct {
		URL    string
		Schema string `validate:"required"`
	}
	Logger struct {
		Level               string `validate:"oneof=debug info warn error"`
		OutputFileName      string
		OutputErrorFileName string
	}
)

// Addr is host:port, or empty when no host is configured.
func (r Redis) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Endpoint is host:port, or empty when no host is configured.
func (m Minio) Endpoint() string {
	if m.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", m.Host, m.Port)
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	env := &envReader{}
	cfg := &Config{
		App: App{
			Env:                 env.String("APP_ENV", "development"),
			Port:                env.String("APP_PORT", ":8080"),
			EndpointPrefix:      env.String("APP_ENDPOINT_PREFIX", "/v1"),
			MaxRequests:         env.Int("APP_MAX_REQUEST", 10),
			BodyLimitInMegabyte: env.Int("APP_REQUEST_BODY_LIMIT_IN_MEGABYTE", 32),
			ShutdownTimeout:     env.Int("APP_SHUTDOWN_TIMEOUT", 10),
			ShareTTLInDays:      env.Int("APP_SHARE_TTL_IN_DAYS", 30),
		},
		Analysis: models.Config{
			Population:             env.Float("ANALYSIS_POPULATION", 0),
			UseTelephony:           env.Bool("ANALYSIS_USE_TELEPHONY", false),
			UseOnline:              env.Bool("ANALYSIS_USE_ONLINE", false),
			WorkingDaysPerMonth:    env.Float("ANALYSIS_WORKING_DAYS_PER_MONTH", models.DefaultWorkingDaysPerMonth),
			Allocation:             models.AllocationPolicy(env.String("ANALYSIS_ALLOCATION", string(models.AllocateEvenSplit))),
			UnknownMonth:           models.UnknownMonthPolicy(env.String("ANALYSIS_UNKNOWN_MONTH", string(models.UnknownMonthFallback))),
			ForecastPeriods:        models.RequestedForecastPeriods(env.Int("ANALYSIS_FORECAST_PERIODS", models.DefaultForecastPeriods)),
			OutlierThreshold:       env.Float("ANALYSIS_OUTLIER_THRESHOLD", models.DefaultOutlierThreshold),
			MissedCallRepeatFactor: env.Float("ANALYSIS_MISSED_CALL_REPEAT_FACTOR", 0),
		},
		Redis: Redis{
			Host:     env.String("REDIS_HOST", ""),
			Port:     env.String("REDIS_PORT", "6379"),
			Password: env.String("REDIS_PASSWORD", ""),
			DB:       env.Int("REDIS_DB", 0),
		},
		Minio: Minio{
			Host:       env.String("MINIO_HOST", ""),
			Port:       env.String("MINIO_PORT", "9000"),
			Username:   env.String("MINIO_USERNAME", ""),
			Password:   env.String("MINIO_PASSWORD", ""),
			BucketName: env.String("MINIO_BUCKET_NAME", "practice-reports"),
			UseSSL:     env.Bool("MINIO_USE_SSL", false),
		},
		Postgres: Postgres{
			URL:    env.String("DATABASE_URL", ""),
			Schema: env.String("DATABASE_SCHEMA", "practice_insights"),
		},
		Logger: Logger{
			Level:               strings.ToLower(env.String("LOGGER_LEVEL", "info")),
			OutputFileName:      env.String("LOGGER_OUTPUT_FILENAME", "logger.log"),
			OutputErrorFileName: env.String("LOGGER_OUTPUT_ERROR_FILENAME", "logger_error.log"),
		},
	}

	cfg.Analysis.AppointmentsPerWtePerDay = models.DefaultAppointmentsPerWtePerDay()
	for group, rate := range cfg.Analysis.AppointmentsPerWtePerDay {
		key := "ANALYSIS_APPTS_PER_WTE_PER_DAY_" + strings.ToUpper(string(group))
		cfg.Analysis.AppointmentsPerWtePerDay[group] = env.Float(key, rate)
	}

	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct tags on cfg, including the analysis options.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateStruct checks the validate tags of any struct, such as request
// bodies.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
