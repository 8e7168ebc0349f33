package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	Environment string
	HTTPAddr    string
	LogLevel    string

	// ScheduleTZ - часовой пояс, в котором разворачиваются недельные правила и серии
	ScheduleTZ  string
	DBTimeout   time.Duration
	AutoMigrate bool

	RedisAddr          string // пусто - блокировки в памяти процесса, без публикации событий в Redis
	RedisPassword      string
	RedisDB            int
	RedisEventsChannel string
	LockTTL            time.Duration

	SentryDSN string
	Release   string
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return FromEnv(os.Getenv)
}

// FromEnv читает конфигурацию через getenv и проставляет значения по умолчанию
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBDSN:              getenv("DB_DSN"),
		Environment:        getenv("ENV"),
		HTTPAddr:           getenv("HTTP_ADDR"),
		LogLevel:           getenv("LOG_LEVEL"),
		ScheduleTZ:         getenv("SCHEDULE_TZ"),
		RedisAddr:          getenv("REDIS_ADDR"),
		RedisPassword:      getenv("REDIS_PASSWORD"),
		RedisEventsChannel: getenv("REDIS_EVENTS_CHANNEL"),
		SentryDSN:          getenv("SENTRY_DSN"),
		Release:            getenv("RELEASE"),
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ScheduleTZ == "" {
		cfg.ScheduleTZ = "UTC"
	}
	if cfg.RedisEventsChannel == "" {
		cfg.RedisEventsChannel = "scheduler.events"
	}

	var err error
	if cfg.DBTimeout, err = durationVar(getenv, "DB_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = durationVar(getenv, "LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate, err = boolVar(getenv, "AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if raw := getenv("REDIS_DB"); raw != "" {
		if cfg.RedisDB, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("parse REDIS_DB %q: %w", raw, err)
		}
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if _, err := time.LoadLocation(cfg.ScheduleTZ); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TZ %q: %w", cfg.ScheduleTZ, err)
	}

	return cfg, nil
}

func durationVar(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	return d, nil
}

func boolVar(getenv func(string) string, name string, def bool) (bool, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	return v, nil
}

// Location возвращает часовой пояс расписания
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
