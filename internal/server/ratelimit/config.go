package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	return LoadConfigFrom(os.Getenv)
}

// LoadConfigFrom loads rate limiting configuration from variables read through getenv.
func LoadConfigFrom(getenv func(string) string) *Config {
	env := envReader(getenv)

	if !env.boolean("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	endpoints := DefaultEndpointConfigs()
	heavyLimit := env.integer("RATE_LIMIT_PROCESS_LIMIT", 0)
	heavyWindow := env.duration("RATE_LIMIT_PROCESS_WINDOW", 0)
	for i := range endpoints {
		if !remoteCallPaths[endpoints[i].Path] {
			continue
		}
		if heavyLimit > 0 {
			endpoints[i].Limit = heavyLimit
			endpoints[i].Burst = min(endpoints[i].Burst, heavyLimit)
		}
		if heavyWindow > 0 {
			endpoints[i].Window = heavyWindow
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    env.integer("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   env.duration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: env.duration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(env.str("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(env.str("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: endpoints,
	}
}

// remoteCallPaths are the endpoints tuned by RATE_LIMIT_PROCESS_*.
var remoteCallPaths = map[string]bool{
	"/process":        true,
	"/keywords":       true,
	"/analyze/stream": true,
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: remote model calls (strictest limits)
		{Path: "/process", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/keywords", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/analyze/stream", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Tier 2: extraction without model calls (moderate limits)
		{Path: "/documents/extract", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/postings/extract", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},

		// Tier 3: everything else uses the default limit
		// Tier 4: health check is unlimited, handled in the matcher
	}
}

type envReader func(string) string

func (e envReader) str(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) integer(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envReader) boolean(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
