// Package config provides configuration management for the broker
// process: defaults, then .env, then environment variables, then
// command-line flags, in that precedence order.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the demo binary and admin server need.
// Publish backpressure is deliberately not configurable: the SPSC
// ring buffer always drops on overflow, and the dispatcher's FIFO is
// unbounded, so the only dispatcher knob is a backlog depth past
// which a single warning is logged.
type Config struct {
	// Admin HTTP surface
	Host string
	Port string

	// Dispatcher backlog depth past which a warning is logged; it is
	// logged again only after the backlog has fallen back to this depth.
	DispatchWarnThreshold int

	// Per-subscriber adapter ring buffer capacity
	AdapterRingCapacity int

	// Timeouts for the admin HTTP server
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	LogLevel string
}

// New returns a Config populated from defaults overridden by any
// matching environment variables.
func New() *Config {
	return &Config{
		Host:                  getEnv("MCP_HOST", "0.0.0.0"),
		Port:                  getEnv("MCP_PORT", "8080"),
		DispatchWarnThreshold: getEnvAsInt("MCP_DISPATCH_WARN_THRESHOLD", 1024),
		AdapterRingCapacity:   getEnvAsInt("MCP_ADAPTER_RING_CAPACITY", 256),
		WriteTimeout:          getEnvAsDuration("MCP_WRITE_TIMEOUT", 30*time.Second),
		ReadTimeout:           getEnvAsDuration("MCP_READ_TIMEOUT", 60*time.Second),
		LogLevel:              getEnv("MCP_LOG_LEVEL", "info"),
	}
}

// ParseFlags overlays command-line flags on top of c, the last stage
// of the defaults -> .env -> environment -> flags precedence chain.
func (c *Config) ParseFlags() {
	flag.StringVar(&c.Host, "host", c.Host, "admin HTTP host")
	flag.StringVar(&c.Port, "port", c.Port, "admin HTTP port")
	flag.IntVar(&c.DispatchWarnThreshold, "dispatch-warn-threshold", c.DispatchWarnThreshold, "dispatcher backlog depth that triggers a warning log")
	flag.IntVar(&c.AdapterRingCapacity, "adapter-ring-capacity", c.AdapterRingCapacity, "per-subscriber adapter ring buffer capacity")
	flag.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "admin HTTP write timeout")
	flag.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "admin HTTP read timeout")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
