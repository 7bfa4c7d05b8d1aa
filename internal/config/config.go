// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package config loads ListSync configuration from defaults, an optional YAML
// file and environment variables (in increasing order of precedence).
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Database DatabaseConfig `koanf:"database"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds token and request-limiting settings.
type SecurityConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	JWTAudience string        `koanf:"jwt_audience"`
	TokenTTL    time.Duration `koanf:"token_ttl"`

	// LookupTimeout bounds the store queries made while authenticating and
	// authorizing a WebSocket handshake.
	LookupTimeout time.Duration `koanf:"lookup_timeout"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// RealtimeConfig holds WebSocket fanout settings.
type RealtimeConfig struct {
	WriteWait            time.Duration `koanf:"write_wait"`
	PongWait             time.Duration `koanf:"pong_wait"`
	PingPeriod           time.Duration `koanf:"ping_period"`
	MaxMessageSize       int64         `koanf:"max_message_size"`
	BroadcastConcurrency int           `koanf:"broadcast_concurrency"`

	// InboundRate is the sustained number of client frames per second a
	// connection may send; frames above InboundRate+InboundBurst are dropped.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// DatabaseConfig holds the badger store location.
type DatabaseConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often value log garbage collection runs. Zero
	// disables the collector.
	GCInterval time.Duration `koanf:"gc_interval"`
	GCRatio    float64       `koanf:"gc_ratio"`
}

// BreakerConfig tunes the circuit breaker guarding store lookups.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// Load reads the configuration. It is the entry point used by cmd/server.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
