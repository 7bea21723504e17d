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
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health listener

	Env      string // "dev" | "prod"
	LogLevel string // debug | info | warn | error

	// Storage
	Store       string // memory | sqlite | postgres
	DBPath      string // e.g. "./data/garita.db"
	PostgresDSN string

	// Control-point catalog file. Empty uses the built-in site layout.
	ControlPointsPath string

	// Engine
	ClosureOffset  time.Duration
	ClosureMode    string // atomic | fail_safe
	MaxOpenPerKind int    // 0 = default (1), negative = unlimited

	// Multi-instance coordination and event fan-out. Empty disables.
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads the given .env files (".env" when none are named) into the
// process environment and then builds the config from it. Missing files are
// ignored; variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	addr := getenvDefault("GARITA_HTTP_ADDR", ":8080")
	grpcAddr := getenvDefault("GARITA_GRPC_ADDR", ":9090")

	env := strings.ToLower(getenvDefault("GARITA_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: addr,
		GRPCAddr: grpcAddr,
		Env:      env,
		LogLevel: strings.ToLower(getenvDefault("GARITA_LOG_LEVEL", "info")),

		Store:       strings.ToLower(getenvDefault("GARITA_STORE", StoreSQLite)),
		DBPath:      getenvDefault("GARITA_DB_PATH", "./data/garita.db"),
		PostgresDSN: os.Getenv("GARITA_POSTGRES_DSN"),

		ControlPointsPath: os.Getenv("GARITA_CONTROL_POINTS"),

		ClosureOffset:  time.Duration(getenvInt("GARITA_CLOSURE_OFFSET_MS", 1000)) * time.Millisecond,
		ClosureMode:    strings.ToLower(getenvDefault("GARITA_CLOSURE_MODE", "atomic")),
		MaxOpenPerKind: getenvSignedInt("GARITA_MAX_OPEN_PER_KIND", 1),

		RedisURL:     os.Getenv("GARITA_REDIS_URL"),
		KafkaBrokers: splitCSV(os.Getenv("GARITA_KAFKA_BROKERS")),
		KafkaTopic:   getenvDefault("GARITA_KAFKA_TOPIC", "garita.movements"),
	}
}

// Validate reports settings that would make the server fail later.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("GARITA_POSTGRES_DSN is required when GARITA_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", c.Store)
	}
	if c.HTTPAddr == "" {
		return errors.New("GARITA_HTTP_ADDR must not be empty")
	}
	if c.ClosureOffset <= 0 {
		return errors.New("GARITA_CLOSURE_OFFSET_MS must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// getenvSignedInt is getenvInt for settings where a negative value means
// something.
func getenvSignedInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
