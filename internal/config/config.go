package config

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider exposes host configuration to the rest of the application.
// Using an interface keeps tests free of real environment state.
type Provider interface {
	GetServerAddr() string
	GetLogFormat() string
	GetDefaultLanguage() string
	GetHostPlatform() string
	GetMaxExecutionTime() time.Duration
	GetMaxMemoryBytes() int64
	GetAllowedPackages() []string
	GetBundleOverrideDir() string
	GetHotReloadEnabled() bool
}

// Config holds all configuration for the script host.
type Config struct {
	ServerAddr        string
	LogFormat         string
	DefaultLanguage   string
	HostPlatform      string
	MaxExecutionTime  time.Duration
	MaxMemoryBytes    int64
	AllowedPackages   []string
	BundleOverrideDir string
	HotReloadEnabled  bool
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		ServerAddr:        envOr("HOST_ADDR", ":8080"),
		LogFormat:         envOr("LOG_FORMAT", "text"),
		DefaultLanguage:   envOr("HOST_DEFAULT_LANGUAGE", "tengo"),
		HostPlatform:      envOr("HOST_PLATFORM", runtime.GOOS),
		MaxExecutionTime:  envDuration("HOST_MAX_EXECUTION_TIME", 5*time.Second),
		MaxMemoryBytes:    envInt64("HOST_MAX_MEMORY_BYTES", 32*1024*1024),
		AllowedPackages:   envList("HOST_ALLOWED_PACKAGES", []string{"fmt", "strings", "math"}),
		BundleOverrideDir: os.Getenv("HOST_BUNDLE_OVERRIDE_DIR"),
		HotReloadEnabled:  os.Getenv("HOST_HOT_RELOAD") != "false",
	}

	return cfg
}

func (c *Config) GetServerAddr() string              { return c.ServerAddr }
func (c *Config) GetLogFormat() string               { return c.LogFormat }
func (c *Config) GetDefaultLanguage() string         { return c.DefaultLanguage }
func (c *Config) GetHostPlatform() string            { return c.HostPlatform }
func (c *Config) GetMaxExecutionTime() time.Duration { return c.MaxExecutionTime }
func (c *Config) GetMaxMemoryBytes() int64           { return c.MaxMemoryBytes }
func (c *Config) GetAllowedPackages() []string       { return c.AllowedPackages }
func (c *Config) GetBundleOverrideDir() string       { return c.BundleOverrideDir }
func (c *Config) GetHotReloadEnabled() bool          { return c.HotReloadEnabled }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default", key, v)
		return fallback
	}
	return d
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default", key, v)
		return fallback
	}
	return n
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
