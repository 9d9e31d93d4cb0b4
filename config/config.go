// Package config reads process settings from the environment. A .env file in
// the working directory is loaded first; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Agenda storage backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendTable  = "table"
)

type Config struct {
	ListenAddr string
	Debug      bool

	AgendaBackend string
	AgendaKey     string
	AgendaQuota   int
	DataDir       string

	RedisConnectionString string
	CacheTTL              time.Duration

	StorageConnectionString string
	AgendaTable             string

	ClinicDB string
}

// Load reads the optional env files and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup and validates it.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := Config{
		ListenAddr:              get("LISTEN_ADDR", ":8080"),
		AgendaBackend:           strings.ToLower(get("AGENDA_BACKEND", BackendFile)),
		AgendaKey:               get("AGENDA_KEY", "agenda_zen"),
		DataDir:                 get("DATA_DIR", "data"),
		RedisConnectionString:   get("REDIS_CONNECTION_STRING", ""),
		StorageConnectionString: get("STORAGE_CONNECTION_STRING", ""),
		AgendaTable:             get("AGENDA_TABLE", "agenda"),
	}
	c.ClinicDB = get("CLINIC_DB", filepath.Join(c.DataDir, "zen_clinic.db"))
	if v, ok := lookup("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && v != "" {
		c.ListenAddr = ":" + v
	}

	if v := get("DEBUG", ""); v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid DEBUG: %w", err)
		}
		c.Debug = dbg
	}
	if v := get("AGENDA_QUOTA_BYTES", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("config: invalid AGENDA_QUOTA_BYTES %q", v)
		}
		c.AgendaQuota = n
	}
	if v := get("CACHE_TTL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("config: invalid CACHE_TTL %q", v)
		}
		c.CacheTTL = d
	}
	return c, c.Validate()
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.AgendaBackend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.RedisConnectionString == "" {
			return errors.New("config: AGENDA_BACKEND=redis requires REDIS_CONNECTION_STRING")
		}
	case BackendTable:
		if c.StorageConnectionString == "" || c.AgendaTable == "" {
			return errors.New("config: AGENDA_BACKEND=table requires STORAGE_CONNECTION_STRING and AGENDA_TABLE")
		}
	default:
		return fmt.Errorf("config: unknown AGENDA_BACKEND %q", c.AgendaBackend)
	}
	if c.ClinicDB == "" {
		return errors.New("config: missing CLINIC_DB")
	}
	return nil
}

// UseCache reports whether agenda reads go through the redis read-through
// cache.
func (c Config) UseCache() bool {
	return c.RedisConnectionString != "" && c.CacheTTL > 0 && c.AgendaBackend != BackendRedis
}
