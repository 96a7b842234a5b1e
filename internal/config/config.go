package config

import (
	"time"

	"livebid/internal/ratelimit"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379"   validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"livebid"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"livebid"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"livebid"`
	MigrateOnStart   bool   `env:"MIGRATE_ON_START"  envDefault:"true"`

	HttpServerPort uint16   `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
	CorsOrigins    []string `env:"CORS_ORIGINS"     envDefault:"*" envSeparator:","`

	BidMinIncrement       int64         `env:"BID_MIN_INCREMENT"       envDefault:"10"       validate:"min=1"`
	BidIncrementRule      string        `env:"BID_INCREMENT_RULE"      envDefault:"relative" validate:"oneof=relative absolute"`
	ParticipantDisplayCap int           `env:"PARTICIPANT_DISPLAY_CAP" envDefault:"5"        validate:"min=0"`
	ClockTick             time.Duration `env:"CLOCK_TICK"              envDefault:"1s"       validate:"min=10ms"`
	ClockWarning          time.Duration `env:"CLOCK_WARNING"           envDefault:"5m"`

	RateLimitBackend       string        `env:"RATE_LIMIT_BACKEND"        envDefault:"memory" validate:"oneof=memory redis"`
	RateLimitBidMode       string        `env:"RATE_LIMIT_BID_MODE"       envDefault:"window" validate:"oneof=window cooldown"`
	RateLimitBidCooldown   time.Duration `env:"RATE_LIMIT_BID_COOLDOWN"   envDefault:"30s"`
	RateLimitBidsPerMinute int           `env:"RATE_LIMIT_BIDS_PER_MINUTE" envDefault:"10" validate:"min=1"`
	RateLimitLoginAttempts int           `env:"RATE_LIMIT_LOGIN_ATTEMPTS" envDefault:"5"      validate:"min=1"`
	RateLimitLoginWindow   time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW"   envDefault:"15m"`
	RateLimitWatches       int           `env:"RATE_LIMIT_WATCHES"        envDefault:"50"     validate:"min=1"`
	RateLimitWatchWindow   time.Duration `env:"RATE_LIMIT_WATCH_WINDOW"   envDefault:"1h"`
	RateLimitRetention     time.Duration `env:"RATE_LIMIT_RETENTION"      envDefault:"2h"`
	RateLimitSweep         time.Duration `env:"RATE_LIMIT_SWEEP"          envDefault:"1h"`

	JwtSecret   string        `env:"JWT_SECRET"   envDefault:"livebid-dev-secret-change-me" validate:"min=16"`
	JwtTTL      time.Duration `env:"JWT_TTL"      envDefault:"24h"`
	AdminPhones []string      `env:"ADMIN_PHONES" envDefault:"77777777,7777777" envSeparator:","`

	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"debug"   validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err = validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

// RateLimit converts the RATE_LIMIT_* keys for the limiter constructors.
func (c *Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		BidMode:          ratelimit.BidMode(c.RateLimitBidMode),
		BidCooldown:      c.RateLimitBidCooldown,
		MaxBidsPerMinute: c.RateLimitBidsPerMinute,
		BidWindow:        time.Minute,
		MaxLoginAttempts: c.RateLimitLoginAttempts,
		LoginWindow:      c.RateLimitLoginWindow,
		MaxWatches:       c.RateLimitWatches,
		WatchWindow:      c.RateLimitWatchWindow,
		Retention:        c.RateLimitRetention,
	}
}

func (c *Config) IsAdminPhone(phone string) bool {
	for _, p := range c.AdminPhones {
		if p == phone {
			return true
		}
	}
	return false
}
