package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Session  SessionConfig  `yaml:"session"`
	Projects ProjectsConfig `yaml:"projects"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
	App      AppConfig      `yaml:"app"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// StreamKeepAlive is the SSE comment interval on idle streams.
	StreamKeepAlive time.Duration `yaml:"stream_keep_alive" env:"STREAM_KEEP_ALIVE" env-default:"15s"`
}

// StoreConfig selects the document store. PostgresMaxConns zero keeps pgx's
// pool default.
type StoreConfig struct {
	Backend          string        `yaml:"backend"            env:"STORE_BACKEND"       env-default:"memory"`
	RedisAddr        string        `yaml:"redis_addr"         env:"REDIS_ADDR"          env-default:"localhost:6379"`
	RedisPrefix      string        `yaml:"redis_prefix"       env:"REDIS_PREFIX"        env-default:"studio:"`
	PostgresDSN      string        `yaml:"postgres_dsn"       env:"DB_DSN"`
	PostgresMaxConns int32         `yaml:"postgres_max_conns" env:"DB_MAX_CONNS"`
	PollInterval     time.Duration `yaml:"poll_interval"      env:"STORE_POLL_INTERVAL" env-default:"1s"`
}

type FirebaseConfig struct {
	CredentialsPath string `yaml:"credentials_path" env:"FIREBASE_CREDENTIALS_PATH"`
	ProjectID       string `yaml:"project_id"       env:"FIREBASE_PROJECT_ID"`
}

// Enabled reports whether Firebase Admin credentials are configured.
func (f FirebaseConfig) Enabled() bool { return f.CredentialsPath != "" }

type SessionConfig struct {
	IdleTTL    time.Duration `yaml:"idle_ttl"    env:"SESSION_IDLE_TTL"    env-default:"30m"`
	SweepSpec  string        `yaml:"sweep_spec"  env:"SESSION_SWEEP_SPEC"  env-default:"0 */5 * * * *"`
	RatePerSec float64       `yaml:"rate_per_sec" env:"SESSION_RATE"      env-default:"20"`
	RateBurst  int           `yaml:"rate_burst"  env:"SESSION_RATE_BURST"  env-default:"40"`
}

type ProjectsConfig struct {
	ExistsDebounce time.Duration `yaml:"exists_debounce" env:"PROJECTS_EXISTS_DEBOUNCE" env-default:"500ms"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

type AppConfig struct {
	Environment string `yaml:"environment" env:"APP_ENV"     env-default:"development"`
	Version     string `yaml:"version"     env:"APP_VERSION" env-default:"1.0.0"`
}

// Load reads configuration from environment variables, after loading a
// .env file when present. When CONFIG_PATH is set the YAML file it names is
// read first; environment variables still take priority.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	backends := []string{StoreMemory, StoreFirestore, StoreRedis, StorePostgres}
	if !slices.Contains(backends, c.Store.Backend) {
		return fmt.Errorf("STORE_BACKEND must be one of %v, got %q", backends, c.Store.Backend)
	}
	if c.Store.Backend == StorePostgres && c.Store.PostgresDSN == "" {
		return fmt.Errorf("DB_DSN is required for the postgres store")
	}
	if c.Store.Backend == StoreFirestore && !c.Firebase.Enabled() {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required for the firestore store")
	}

	if c.Projects.ExistsDebounce < 0 {
		return fmt.Errorf("PROJECTS_EXISTS_DEBOUNCE must not be negative")
	}
	if c.Session.RatePerSec <= 0 || c.Session.RateBurst <= 0 {
		return fmt.Errorf("SESSION_RATE and SESSION_RATE_BURST must be positive")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
