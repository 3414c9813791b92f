package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	AdminToken  string
	JWT         JWT
	Ledger      Ledger
	Storage     Storage
	Redis       Redis
	Kafka       Kafka
	Outbox      Outbox
}

// JWT configures caller tokens.
type JWT struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// Ledger configures bootstrap and the authority program.
type Ledger struct {
	AdminIdentity     string
	ProgramSeed       string
	IdentityCacheSize int
}

// Storage selects and configures the ledger store.
type Storage struct {
	Backend        string
	BadgerDir      string
	BadgerInMemory bool
	DatabaseURL    string
	TxTimeout      time.Duration
	// TxRetryMaxDelay caps the backoff between replays of a conflicting transaction.
	TxRetryMaxDelay time.Duration
}

// Redis configures distributed lanes. An empty URL keeps lanes in-process.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// Kafka configures event publishing. An empty broker list logs events instead.
type Kafka struct {
	Brokers string
	Topic   string
	Acks    string
}

// Outbox configures the publisher loop.
type Outbox struct {
	PollInterval time.Duration
	BatchSize    int
	Retention    time.Duration
}

// Load reads a .env file when present, then the environment.
func Load() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        str("MEMOLEDGER_ADDR", ":8080"),
		Environment: str("MEMOLEDGER_ENV", "development"),
		LogLevel:    str("LOG_LEVEL", "info"),
		AdminToken:  str("ADMIN_API_TOKEN", ""),
		JWT: JWT{
			// development default; override in production
			SigningKey: str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     str("JWT_ISSUER", "memoledger"),
			Audience:   str("JWT_AUDIENCE", "memoledger"),
			TTL:        duration("JWT_TTL", 24*time.Hour),
		},
		Ledger: Ledger{
			AdminIdentity:     str("LEDGER_ADMIN_IDENTITY", "admin"),
			ProgramSeed:       str("LEDGER_PROGRAM_SEED", "dev-program-seed-change-in-production"),
			IdentityCacheSize: integer("IDENTITY_CACHE_SIZE", 4096),
		},
		Storage: Storage{
			Backend:         strings.ToLower(str("STORAGE_BACKEND", BackendBadger)),
			BadgerDir:       str("BADGER_DIR", "./data/badger"),
			BadgerInMemory:  boolean("BADGER_IN_MEMORY", false),
			DatabaseURL:     str("DATABASE_URL", ""),
			TxTimeout:       duration("LEDGER_TX_TIMEOUT", 5*time.Second),
			TxRetryMaxDelay: duration("LEDGER_TX_RETRY_MAX_DELAY", 100*time.Millisecond),
		},
		Redis: Redis{
			URL:          str("REDIS_URL", ""),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      duration("REDIS_LOCK_TTL", 10*time.Second),
		},
		Kafka: Kafka{
			Brokers: str("KAFKA_BROKERS", ""),
			Topic:   str("KAFKA_TOPIC", "memoledger.ledger.events"),
			Acks:    str("KAFKA_ACKS", "all"),
		},
		Outbox: Outbox{
			PollInterval: duration("OUTBOX_POLL_INTERVAL", 200*time.Millisecond),
			BatchSize:    integer("OUTBOX_BATCH_SIZE", 100),
			Retention:    duration("OUTBOX_RETENTION", 7*24*time.Hour),
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (s Server) Validate() error {
	var errs []error
	switch s.Storage.Backend {
	case BackendBadger:
		if !s.Storage.BadgerInMemory && s.Storage.BadgerDir == "" {
			errs = append(errs, errors.New("BADGER_DIR is required unless BADGER_IN_MEMORY=true"))
		}
	case BackendPostgres:
		if s.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", s.Storage.Backend))
	}
	if len(s.Ledger.ProgramSeed) < 16 {
		errs = append(errs, errors.New("LEDGER_PROGRAM_SEED must be at least 16 bytes"))
	}
	if s.Ledger.AdminIdentity == "" {
		errs = append(errs, errors.New("LEDGER_ADMIN_IDENTITY is required"))
	}
	if s.JWT.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	return errors.Join(errs...)
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func integer(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func boolean(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}
