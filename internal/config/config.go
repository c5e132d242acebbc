// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// How often every known instance is re-reconciled
	SweepInterval time.Duration

	// Upper bound on each execution-layer call
	ActionTimeout time.Duration

	// Execution layer backend: "local", "docker" or "kubernetes"
	Executor string

	// Sandbox root directory for the local executor
	SandboxRoot string

	// Public API rate limit. 0 disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// OTLP collector endpoint for traces
	OTELEndpoint string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	portStr := os.Getenv("PORT")
	port := 6262 // Default
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		port = p
	}

	sweepStr := os.Getenv("SWEEP_INTERVAL")
	sweep := 30 * time.Second // Default
	if sweepStr != "" {
		s, err := time.ParseDuration(sweepStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		sweep = s
	}

	timeoutStr := os.Getenv("ACTION_TIMEOUT")
	timeout := 10 * time.Second // Default
	if timeoutStr != "" {
		t, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid ACTION_TIMEOUT: %w", err)
		}
		timeout = t
	}

	executor := os.Getenv("EXECUTOR")
	if executor == "" {
		executor = "docker"
	}
	switch executor {
	case "local", "docker", "kubernetes":
	default:
		return nil, fmt.Errorf("invalid EXECUTOR: %q", executor)
	}

	sandboxRoot := os.Getenv("SANDBOX_ROOT")
	if sandboxRoot == "" {
		sandboxRoot = os.TempDir()
	}

	rps := 0.0
	if s := os.Getenv("RATE_LIMIT_RPS"); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
		}
		rps = r
	}
	burst := 10 // Default
	if s := os.Getenv("RATE_LIMIT_BURST"); s != "" {
		b, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
		}
		burst = b
	}

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}

	return &Config{
		DatabaseURL:    dbUrl,
		HTTPPort:       port,
		SweepInterval:  sweep,
		ActionTimeout:  timeout,
		Executor:       executor,
		SandboxRoot:    sandboxRoot,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		OTELEndpoint:   otelEndpoint,
	}, nil
}
