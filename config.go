package soqlstudio

import (
	"os"
	"strings"
	"time"
)

// Defaults applied during Provision.
const (
	defaultRoutePrefix     = "/soql"
	routePrefixEnv         = "SOQL_STUDIO_ROUTE_PREFIX"
	defaultQueryTimeout    = 10 * time.Second
	defaultPageSize        = 10
	defaultMaxPageSize     = 100
	defaultAbsoluteMaxRows = 10000
	defaultThreads         = 4
	defaultAccessMode      = "read_write"
	defaultResultCacheSize = 100
	defaultResultCacheTTL  = 30 * time.Minute
	defaultSuggestionLimit = 8
)

// resolveRoutePrefix picks the configured prefix, then the
// SOQL_STUDIO_ROUTE_PREFIX environment variable, then /soql. The result
// starts with a slash and has no trailing slash.
func resolveRoutePrefix(configured string) string {
	prefix := configured
	if prefix == "" {
		prefix = os.Getenv(routePrefixEnv)
	}
	if prefix == "" {
		prefix = defaultRoutePrefix
	}
	// Ensure route prefix starts with /
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	// Remove trailing slash if present
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return defaultRoutePrefix
	}
	return prefix
}

// parseBool accepts the spellings used across Caddyfile directives.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "yes" || s == "1"
}
