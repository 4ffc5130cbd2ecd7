// Package soqlstudio is a Caddy HTTP handler that executes SOQL queries and
// serves filtered, sorted, paginated and exported views of their results,
// together with persistent saved queries.
package soqlstudio

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/caddyserver/caddy/v2/caddyconfig/httpcaddyfile"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/database"
	"github.com/tobilg/caddyserver-soqlstudio-module/handlers"
	"github.com/tobilg/caddyserver-soqlstudio-module/savedquery"
	"github.com/tobilg/caddyserver-soqlstudio-module/source"
	"github.com/tobilg/caddyserver-soqlstudio-module/suggest"
)

func init() {
	caddy.RegisterModule(SOQLStudio{})
	httpcaddyfile.RegisterHandlerDirective("soql_studio", parseCaddyfile)
}

// SOQLStudio is a Caddy module that provides a REST API for running SOQL
// queries and working with their result sets.
type SOQLStudio struct {
	// RoutePrefix is the path prefix of every studio endpoint. Defaults to
	// the SOQL_STUDIO_ROUTE_PREFIX environment variable, then /soql.
	RoutePrefix string `json:"route_prefix,omitempty"`

	// Source selects where queries run: "mock" answers every query with
	// the demo Account data, "sql" runs the text against the DuckDB sandbox.
	// Default is mock.
	Source string `json:"source,omitempty"`

	// MockLatency delays mock answers to simulate a remote API.
	MockLatency caddy.Duration `json:"mock_latency,omitempty"`

	// SandboxPath is the DuckDB file the sql source reads from.
	// If empty, an in-memory database will be used.
	SandboxPath string `json:"sandbox_path,omitempty"`

	// SeedDemoData creates the demo Account table in the sandbox on start.
	SeedDemoData bool `json:"seed_demo_data,omitempty"`

	// StorageDriver selects the saved-query storage engine: duckdb or sqlite.
	// Default is duckdb.
	StorageDriver string `json:"storage_driver,omitempty"`

	// StoragePath is the saved-query storage file.
	// If empty, saved queries only live as long as the process.
	StoragePath string `json:"storage_path,omitempty"`

	// QueryTimeout is the maximum duration for query execution.
	// Default is 10 seconds.
	QueryTimeout caddy.Duration `json:"query_timeout,omitempty"`

	// DefaultPageSize is the page size when a request names none.
	// Default is 10.
	DefaultPageSize int `json:"default_page_size,omitempty"`

	// MaxPageSize caps requested page sizes. Default is 100.
	MaxPageSize int `json:"max_page_size,omitempty"`

	// AbsoluteMaxRows is the safety limit on rows kept from a single query.
	// Set to -1 to disable the limit (not recommended for production).
	// Default is 10000.
	AbsoluteMaxRows int `json:"absolute_max_rows,omitempty"`

	// Threads is the number of threads DuckDB should use.
	// Default is 4.
	Threads int `json:"threads,omitempty"`

	// AccessMode determines the access mode for the sandbox database.
	// Valid values are "read_only" or "read_write" (default).
	AccessMode string `json:"access_mode,omitempty"`

	// MemoryLimit is the maximum memory DuckDB can use (e.g., "4GB", "512MB").
	// If empty, DuckDB defaults to 80% of available RAM.
	MemoryLimit string `json:"memory_limit,omitempty"`

	// ResultCacheSize is how many result sets are kept for views and
	// exports. Default is 100.
	ResultCacheSize int `json:"result_cache_size,omitempty"`

	// ResultCacheTTL is how long a result set stays available.
	// Default is 30 minutes.
	ResultCacheTTL caddy.Duration `json:"result_cache_ttl,omitempty"`

	// SuggestionLimit is the maximum number of suggestions returned.
	// Default is 8.
	SuggestionLimit int `json:"suggestion_limit,omitempty"`

	logger         *zap.Logger
	dbMgr          *database.Manager
	store          *savedquery.Store
	metrics        *handlers.Metrics
	queryHandler   *handlers.QueryHandler
	viewHandler    *handlers.ViewHandler
	exportHandler  *handlers.ExportHandler
	savedHandler   *handlers.SavedQueryHandler
	suggestHandler *handlers.SuggestHandler
	openAPIHandler *handlers.OpenAPIHandler
	routePrefix    string
}

// CaddyModule returns the Caddy module information.
func (SOQLStudio) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID:  "http.handlers.soql_studio",
		New: func() caddy.Module { return new(SOQLStudio) },
	}
}

// Provision sets up the SOQL studio module.
func (s *SOQLStudio) Provision(ctx caddy.Context) error {
	s.logger = ctx.Logger(s)
	s.applyDefaults()

	var err error
	s.dbMgr, err = database.NewManager(database.Config{
		StorageDriver: s.StorageDriver,
		StoragePath:   s.StoragePath,
		SandboxPath:   s.SandboxPath,
		Threads:       s.Threads,
		AccessMode:    s.AccessMode,
		MemoryLimit:   s.MemoryLimit,
		QueryTimeout:  time.Duration(s.QueryTimeout),
		Logger:        s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database manager: %v", err)
	}

	if s.SeedDemoData {
		if err := source.SeedAccounts(ctx, s.dbMgr); err != nil {
			s.dbMgr.Close()
			return fmt.Errorf("failed to seed demo data: %v", err)
		}
	}

	if s.Source == source.NameSQL {
		s.dbMgr.WarmConnections(ctx)
	}

	s.wire(ctx, savedquery.NewKVPersister(s.dbMgr))

	s.logger.Info("SOQL studio module provisioned",
		zap.String("route_prefix", s.routePrefix),
		zap.String("source", s.Source),
		zap.String("sandbox_path", s.SandboxPath),
		zap.String("storage_driver", s.StorageDriver),
		zap.String("storage_path", s.StoragePath),
		zap.Duration("query_timeout", time.Duration(s.QueryTimeout)),
		zap.Int("default_page_size", s.DefaultPageSize),
		zap.Int("max_page_size", s.MaxPageSize),
		zap.Int("absolute_max_rows", s.AbsoluteMaxRows),
		zap.Int("result_cache_size", s.ResultCacheSize),
		zap.Duration("result_cache_ttl", time.Duration(s.ResultCacheTTL)),
		zap.Int("saved_queries", len(s.store.List())),
	)

	return nil
}

// applyDefaults fills every unset option.
func (s *SOQLStudio) applyDefaults() {
	s.routePrefix = resolveRoutePrefix(s.RoutePrefix)

	if s.Source == "" {
		s.Source = source.NameMock
	}
	if s.StorageDriver == "" {
		s.StorageDriver = database.DriverDuckDB
	}
	if s.QueryTimeout == 0 {
		s.QueryTimeout = caddy.Duration(defaultQueryTimeout)
	}
	if s.DefaultPageSize == 0 {
		s.DefaultPageSize = defaultPageSize
	}
	if s.MaxPageSize == 0 {
		s.MaxPageSize = defaultMaxPageSize
	}
	if s.AbsoluteMaxRows == 0 {
		s.AbsoluteMaxRows = defaultAbsoluteMaxRows
	}
	if s.Threads == 0 {
		s.Threads = defaultThreads
	}
	if s.AccessMode == "" {
		s.AccessMode = defaultAccessMode
	}
	if s.ResultCacheSize == 0 {
		s.ResultCacheSize = defaultResultCacheSize
	}
	if s.ResultCacheTTL == 0 {
		s.ResultCacheTTL = caddy.Duration(defaultResultCacheTTL)
	}
	if s.SuggestionLimit == 0 {
		s.SuggestionLimit = defaultSuggestionLimit
	}
}

// wire builds the saved-query store and every handler.
func (s *SOQLStudio) wire(ctx context.Context, persister savedquery.Persister) {
	s.store = savedquery.NewStore(ctx, persister, savedquery.WithLogger(s.logger))

	var src source.Source
	switch s.Source {
	case source.NameSQL:
		src = source.NewSQL(s.dbMgr, s.AbsoluteMaxRows, s.logger)
	default:
		src = source.Mock{Latency: time.Duration(s.MockLatency)}
	}

	cache := handlers.NewResultCache(s.ResultCacheSize, time.Duration(s.ResultCacheTTL))
	s.metrics = handlers.NewMetrics(cache.Len)
	s.viewHandler = handlers.NewViewHandler(cache, s.metrics, s.DefaultPageSize, s.MaxPageSize, s.routePrefix, s.logger)
	s.exportHandler = handlers.NewExportHandler(cache, s.metrics, s.logger)
	s.queryHandler = handlers.NewQueryHandler(src, cache, s.viewHandler, s.metrics, time.Duration(s.QueryTimeout), s.logger)
	s.savedHandler = handlers.NewSavedQueryHandler(s.store, s.queryHandler, s.routePrefix, s.logger)
	s.suggestHandler = handlers.NewSuggestHandler(suggest.NewMatcher(s.SuggestionLimit))
	s.openAPIHandler = handlers.NewOpenAPIHandler(s.routePrefix)
}

// Validate ensures the module configuration is valid.
func (s *SOQLStudio) Validate() error {
	if s.Source != source.NameMock && s.Source != source.NameSQL {
		return fmt.Errorf("invalid source: %s (must be '%s' or '%s')", s.Source, source.NameMock, source.NameSQL)
	}
	if s.StorageDriver != database.DriverDuckDB && s.StorageDriver != database.DriverSQLite {
		return fmt.Errorf("invalid storage_driver: %s (must be '%s' or '%s')", s.StorageDriver, database.DriverDuckDB, database.DriverSQLite)
	}
	if s.AccessMode != "read_only" && s.AccessMode != "read_write" {
		return fmt.Errorf("invalid access_mode: %s (must be 'read_only' or 'read_write')", s.AccessMode)
	}
	if s.SeedDemoData && s.AccessMode == "read_only" && s.SandboxPath != "" {
		return fmt.Errorf("seed_demo_data requires a writable sandbox")
	}
	if s.DefaultPageSize <= 0 {
		return fmt.Errorf("default_page_size must be greater than 0")
	}
	if s.MaxPageSize < s.DefaultPageSize {
		return fmt.Errorf("max_page_size must be >= default_page_size")
	}
	if s.AbsoluteMaxRows < -1 {
		return fmt.Errorf("absolute_max_rows must be positive, or -1 to disable the limit")
	}
	if s.Threads <= 0 {
		return fmt.Errorf("threads must be greater than 0")
	}
	if s.ResultCacheSize <= 0 {
		return fmt.Errorf("result_cache_size must be greater than 0")
	}
	if s.SuggestionLimit <= 0 {
		return fmt.Errorf("suggestion_limit must be greater than 0")
	}
	return nil
}

// ServeHTTP implements the caddyhttp.MiddlewareHandler interface.
func (s *SOQLStudio) ServeHTTP(w http.ResponseWriter, r *http.Request, next caddyhttp.Handler) error {
	// Check if this is a studio endpoint
	path, ok := strings.CutPrefix(r.URL.Path, s.routePrefix)
	if !ok || (path != "" && !strings.HasPrefix(path, "/")) {
		return next.ServeHTTP(w, r)
	}

	// Add request ID to context and response header for tracing
	r = handlers.WithRequestID(w, r)

	switch {
	case path == "/health":
		handlers.Health(w, r)
	case path == "/openapi.json":
		s.openAPIHandler.ServeHTTP(w, r)
	case path == "/metrics":
		s.metrics.Handler().ServeHTTP(w, r)
	case path == "/suggestions":
		s.suggestHandler.ServeHTTP(w, r)
	case path == "/query":
		s.queryHandler.ServeHTTP(w, r)
	case path == "/view":
		s.viewHandler.ServeHTTP(w, r)
	case path == "/export":
		s.exportHandler.ServeHTTP(w, r)
	case strings.HasPrefix(path, "/results/"):
		s.serveResult(w, r, path)
	case path == "/saved-queries" || strings.HasPrefix(path, "/saved-queries/"):
		s.savedHandler.ServeHTTP(w, r)
	default:
		handlers.NotFound(w, r)
	}
	return nil
}

// serveResult routes /results/{id}/view and /results/{id}/export.
func (s *SOQLStudio) serveResult(w http.ResponseWriter, r *http.Request, path string) {
	id, action, err := handlers.ParseResultPath(path)
	if err != nil {
		handlers.NotFound(w, r)
		return
	}

	switch action {
	case "view":
		s.viewHandler.ServeResult(w, r, id)
	case "export":
		s.exportHandler.ServeResult(w, r, id)
	default:
		handlers.NotFound(w, r)
	}
}

// Cleanup performs cleanup when the module is unloaded.
func (s *SOQLStudio) Cleanup() error {
	if s.dbMgr != nil {
		return s.dbMgr.Close()
	}
	return nil
}

// UnmarshalCaddyfile implements caddyfile.Unmarshaler.
func (s *SOQLStudio) UnmarshalCaddyfile(dispenser *caddyfile.Dispenser) error {
	for dispenser.Next() {
		for dispenser.NextBlock(0) {
			directive := dispenser.Val()
			switch directive {
			case "route_prefix":
				if !dispenser.Args(&s.RoutePrefix) {
					return dispenser.ArgErr()
				}
			case "source":
				if !dispenser.Args(&s.Source) {
					return dispenser.ArgErr()
				}
			case "sandbox_path":
				if !dispenser.Args(&s.SandboxPath) {
					return dispenser.ArgErr()
				}
			case "storage_driver":
				if !dispenser.Args(&s.StorageDriver) {
					return dispenser.ArgErr()
				}
			case "storage_path":
				if !dispenser.Args(&s.StoragePath) {
					return dispenser.ArgErr()
				}
			case "access_mode":
				if !dispenser.Args(&s.AccessMode) {
					return dispenser.ArgErr()
				}
			case "memory_limit":
				if !dispenser.Args(&s.MemoryLimit) {
					return dispenser.ArgErr()
				}
			case "seed_demo_data":
				var enableStr string
				if !dispenser.Args(&enableStr) {
					return dispenser.ArgErr()
				}
				s.SeedDemoData = parseBool(enableStr)
			case "query_timeout", "mock_latency", "result_cache_ttl":
				var raw string
				if !dispenser.Args(&raw) {
					return dispenser.ArgErr()
				}
				duration, err := caddy.ParseDuration(raw)
				if err != nil {
					return dispenser.Errf("invalid %s: %v", directive, err)
				}
				switch directive {
				case "query_timeout":
					s.QueryTimeout = caddy.Duration(duration)
				case "mock_latency":
					s.MockLatency = caddy.Duration(duration)
				default:
					s.ResultCacheTTL = caddy.Duration(duration)
				}
			case "default_page_size", "max_page_size", "absolute_max_rows", "threads", "result_cache_size", "suggestion_limit":
				var raw string
				if !dispenser.Args(&raw) {
					return dispenser.ArgErr()
				}
				n, err := strconv.Atoi(raw)
				if err != nil {
					return dispenser.Errf("invalid %s: %v", directive, err)
				}
				*s.intOption(directive) = n
			default:
				return dispenser.Errf("unknown subdirective: %s", directive)
			}
		}
	}
	return nil
}

// intOption returns the field behind an integer directive.
func (s *SOQLStudio) intOption(directive string) *int {
	switch directive {
	case "default_page_size":
		return &s.DefaultPageSize
	case "max_page_size":
		return &s.MaxPageSize
	case "absolute_max_rows":
		return &s.AbsoluteMaxRows
	case "threads":
		return &s.Threads
	case "result_cache_size":
		return &s.ResultCacheSize
	default:
		return &s.SuggestionLimit
	}
}

// parseCaddyfile unmarshals tokens from h into a new Middleware.
func parseCaddyfile(h httpcaddyfile.Helper) (caddyhttp.MiddlewareHandler, error) {
	var s SOQLStudio
	err := s.UnmarshalCaddyfile(h.Dispenser)
	return &s, err
}

// Interface guards
var (
	_ caddy.Module                = (*SOQLStudio)(nil)
	_ caddy.Provisioner           = (*SOQLStudio)(nil)
	_ caddy.Validator             = (*SOQLStudio)(nil)
	_ caddy.CleanerUpper          = (*SOQLStudio)(nil)
	_ caddyhttp.MiddlewareHandler = (*SOQLStudio)(nil)
	_ caddyfile.Unmarshaler       = (*SOQLStudio)(nil)
)
