package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/usermanagement/account-api/internal/core/domain"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

const minSecretLength = 16

// ErrInvalidConfig marks a configuration the process must not start with.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port        string `env:"PORT,         default=8080"`
	Env         string `env:"ENV,          default=development"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	DefaultRole string `env:"DEFAULT_ROLE, default=Guest"`

	JWT      JWTConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Password PasswordConfig
}

type JWTConfig struct {
	Secret       string        `env:"JWT_SECRET"`
	LegacySecret string        `env:"APPLICATIONSETTINGS_JWT_SECRET"`
	TTL          time.Duration `env:"JWT_TTL,    default=60m"`
	Issuer       string        `env:"JWT_ISSUER"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER, default=postgres"`
}

type PostgresConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DB_MAX_CONNS, default=10"`
	Migrate  bool   `env:"DB_MIGRATE,   default=true"`
}

type MongoConfig struct {
	URI          string `env:"MONGO_URI,          default=mongodb://localhost:27017"`
	Database     string `env:"MONGO_DB,           default=accounts"`
	Transactions bool   `env:"MONGO_TRANSACTIONS, default=true"`
}

// RedisConfig configures the optional role cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	PoolSize int           `env:"REDIS_POOL_SIZE, default=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,   default=1s"`
	RoleTTL  time.Duration `env:"ROLE_CACHE_TTL,  default=1h"`
}

type PasswordConfig struct {
	MinLength              int    `env:"PASSWORD_MIN_LENGTH,                default=8"`
	RequireDigit           bool   `env:"PASSWORD_REQUIRE_DIGIT,             default=false"`
	RequireLowercase       bool   `env:"PASSWORD_REQUIRE_LOWERCASE,         default=false"`
	RequireUppercase       bool   `env:"PASSWORD_REQUIRE_UPPERCASE,         default=false"`
	RequireNonAlphanumeric bool   `env:"PASSWORD_REQUIRE_NON_ALPHANUMERIC,  default=false"`
	Hasher                 string `env:"PASSWORD_HASHER,                    default=argon2id"`
	BcryptCost             int    `env:"BCRYPT_COST,                        default=12"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every setting that prevents a safe start.
func (c *Config) Validate() error {
	var errs []error

	switch secret := c.JWTSecret(); {
	case secret == "":
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, domain.ErrMissingSecret))
	case len(secret) < minSecretLength:
		errs = append(errs, fmt.Errorf("%w: %w (need at least %d bytes)", ErrInvalidConfig, domain.ErrWeakSecret, minSecretLength))
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Postgres.URL) == "" {
			errs = append(errs, fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalidConfig))
		}
	case DriverMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			errs = append(errs, fmt.Errorf("%w: MONGO_URI is required for the mongo store", ErrInvalidConfig))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, c.Store.Driver))
	}

	if c.Password.MinLength < 0 {
		errs = append(errs, fmt.Errorf("%w: PASSWORD_MIN_LENGTH must not be negative", ErrInvalidConfig))
	}
	if c.JWT.TTL < 0 {
		errs = append(errs, fmt.Errorf("%w: JWT_TTL must not be negative", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// JWTSecret returns the signing secret, preferring JWT_SECRET over the
// legacy key.
func (c *Config) JWTSecret() string {
	if c.JWT.Secret != "" {
		return c.JWT.Secret
	}
	return c.JWT.LegacySecret
}

func (c *Config) PasswordPolicy() domain.PasswordPolicy {
	policy := domain.PasswordPolicy{
		MinLength:              c.Password.MinLength,
		RequireDigit:           c.Password.RequireDigit,
		RequireLowercase:       c.Password.RequireLowercase,
		RequireUppercase:       c.Password.RequireUppercase,
		RequireNonAlphanumeric: c.Password.RequireNonAlphanumeric,
	}
	if strings.EqualFold(strings.TrimSpace(c.Password.Hasher), "bcrypt") {
		policy.MaxLength = domain.BcryptMaxPasswordBytes
	}
	return policy
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
