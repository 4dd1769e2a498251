// Package config provides configuration management for Cryptobreakout.
// This file centralizes all port constants to avoid duplication and ensure consistency.
package config

// ============================================================================
// CENTRALIZED PORT CONFIGURATION
// ============================================================================
//
// This file defines the ports used by the pipeline process and its
// infrastructure dependencies. Update this file when adding a new listener.
//
// Port Allocation Strategy:
//   8080-8099: API servers and web services
//   9100-9199: Prometheus metrics endpoints
//
// ============================================================================

// API and Web Service Ports
const (
	// APIServerPort is the port for the main REST API server.
	APIServerPort = 8080

	// WebSocketPort is the port for WebSocket connections (uses same as API).
	WebSocketPort = APIServerPort
)

// Infrastructure Service Ports
const (
	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379
)

// Monitoring Service Ports
const (
	// MetricsPortPipeline is the Prometheus scrape port for the pipeline process.
	MetricsPortPipeline = 9101

	// PrometheusPort is the default port for Prometheus itself.
	PrometheusPort = 9090

	// GrafanaPort is the default port for Grafana.
	GrafanaPort = 3000
)
