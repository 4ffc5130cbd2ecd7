package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tobilg/caddyserver-soqlstudio-module/formats"
	"github.com/tobilg/caddyserver-soqlstudio-module/view"
)

// OpenAPIHandler serves the OpenAPI specification.
type OpenAPIHandler struct {
	routePrefix string
}

// NewOpenAPIHandler creates a new OpenAPI handler. routePrefix becomes the
// server URL of the document.
func NewOpenAPIHandler(routePrefix string) *OpenAPIHandler {
	return &OpenAPIHandler{routePrefix: routePrefix}
}

// ServeHTTP handles HTTP requests for the OpenAPI specification.
func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorWithRequest(w, r, "Only GET method is allowed for OpenAPI specification", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.generateOpenAPISpec())
}

// generateOpenAPISpec generates the OpenAPI 3.0 specification.
func (h *OpenAPIHandler) generateOpenAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Caddy SOQL Studio API",
			"description": "Execute SOQL queries, then filter, search, sort, page and export the results. Saved queries persist in DuckDB or SQLite.",
			"version":     "1.0.0",
			"contact": map[string]interface{}{
				"name": "GitHub Repository",
				"url":  "https://github.com/tobilg/caddyserver-soqlstudio-module",
			},
			"license": map[string]interface{}{
				"name": "MIT",
				"url":  "https://opensource.org/licenses/MIT",
			},
		},
		"servers": []map[string]interface{}{
			{
				"url":         h.routePrefix,
				"description": "SOQL studio base path",
			},
		},
		"tags": []map[string]interface{}{
			{"name": "Query", "description": "SOQL execution and cached result sets"},
			{"name": "View", "description": "Filter, search, sort and paginate result sets"},
			{"name": "Export", "description": "Download result sets"},
			{"name": "Saved Queries", "description": "Persistent saved queries"},
			{"name": "Meta", "description": "Health, metrics, suggestions and documentation"},
		},
		"paths":      h.generatePaths(),
		"components": h.generateComponents(),
	}
}

// generatePaths generates the paths section of the OpenAPI spec.
func (h *OpenAPIHandler) generatePaths() map[string]interface{} {
	resultID := map[string]interface{}{
		"name":        "id",
		"in":          "path",
		"required":    true,
		"description": "Result set id returned by POST /query",
		"schema":      map[string]interface{}{"type": "string", "format": "uuid"},
	}
	savedID := map[string]interface{}{
		"name":        "id",
		"in":          "path",
		"required":    true,
		"description": "Saved query id",
		"schema":      map[string]interface{}{"type": "integer", "format": "int64"},
	}

	return map[string]interface{}{
		"/health": map[string]interface{}{
			"get": operation("Meta", "getHealth", "Liveness check", nil, map[string]interface{}{
				"200": jsonResponse("Service is up", map[string]interface{}{"type": "object"}),
			}),
		},
		"/openapi.json": map[string]interface{}{
			"get": operation("Meta", "getOpenAPISpec", "Get OpenAPI specification", nil, map[string]interface{}{
				"200": jsonResponse("OpenAPI specification", map[string]interface{}{"type": "object"}),
			}),
		},
		"/metrics": map[string]interface{}{
			"get": operation("Meta", "getMetrics", "Prometheus metrics", nil, map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Metrics in the Prometheus exposition format",
					"content":     map[string]interface{}{"text/plain": map[string]interface{}{"schema": map[string]interface{}{"type": "string"}}},
				},
			}),
		},
		"/suggestions": map[string]interface{}{
			"get": withParameters(operation("Meta", "getSuggestions", "Suggest SOQL templates matching the typed text", nil, map[string]interface{}{
				"200": jsonResponse("Matching templates", ref("Suggestions")),
			}), []map[string]interface{}{
				queryParam("q", "Typed query text, matched case-insensitively", "string"),
			}),
		},
		"/query": map[string]interface{}{
			"post": operation("Query", "executeQuery", "Execute SOQL and cache the result set", jsonBody(ref("QueryRequest")), map[string]interface{}{
				"200": jsonResponse("First page of the result set", ref("ViewResponse")),
				"400": errorResponse("Invalid query or view parameters"),
				"504": errorResponse("Query timed out"),
			}),
		},
		"/results/{id}/view": map[string]interface{}{
			"parameters": []map[string]interface{}{resultID},
			"get":        withParameters(operation("View", "viewResultGet", "Compute a page of a cached result set", nil, viewResponses()), viewQueryParams()),
			"post":       operation("View", "viewResultPost", "Compute a page of a cached result set", jsonBody(ref("ViewRequest")), viewResponses()),
		},
		"/results/{id}/export": map[string]interface{}{
			"parameters": []map[string]interface{}{resultID},
			"get": withParameters(operation("Export", "exportResultGet", "Download the filtered and sorted result set", nil, exportResponses()),
				append(viewQueryParams(), exportQueryParams()...)),
			"post": operation("Export", "exportResultPost", "Download the filtered and sorted result set", jsonBody(ref("ExportRequest")), exportResponses()),
		},
		"/view": map[string]interface{}{
			"post": operation("View", "viewInline", "Compute a page of rows sent in the request", jsonBody(ref("InlineViewRequest")), map[string]interface{}{
				"200": jsonResponse("Computed page", ref("ViewResponse")),
				"400": errorResponse("Invalid view parameters"),
			}),
		},
		"/export": map[string]interface{}{
			"post": operation("Export", "exportInline", "Encode rows sent in the request", jsonBody(ref("InlineExportRequest")), exportResponses()),
		},
		"/saved-queries": map[string]interface{}{
			"get": operation("Saved Queries", "listSavedQueries", "List saved queries in insertion order", nil, map[string]interface{}{
				"200": jsonResponse("Saved queries", ref("SavedQueryList")),
			}),
			"post": operation("Saved Queries", "createSavedQuery", "Save a query", jsonBody(ref("SavedQueryRequest")), map[string]interface{}{
				"201": jsonResponse("Created saved query", ref("SavedQuery")),
				"400": errorResponse("Name is blank or body is invalid"),
			}),
		},
		"/saved-queries/{id}": map[string]interface{}{
			"parameters": []map[string]interface{}{savedID},
			"get": operation("Saved Queries", "getSavedQuery", "Get a saved query", nil, map[string]interface{}{
				"200": jsonResponse("Saved query", ref("SavedQuery")),
				"404": errorResponse("Saved query not found"),
			}),
			"put": operation("Saved Queries", "updateSavedQuery", "Update a saved query", jsonBody(ref("SavedQueryRequest")), map[string]interface{}{
				"200": jsonResponse("Updated saved query", ref("SavedQuery")),
				"400": errorResponse("Name is blank or body is invalid"),
				"404": errorResponse("Saved query not found"),
			}),
			"delete": operation("Saved Queries", "deleteSavedQuery", "Delete a saved query; deleting a missing id succeeds", nil, map[string]interface{}{
				"204": map[string]interface{}{"description": "Deleted"},
			}),
		},
		"/saved-queries/{id}/run": map[string]interface{}{
			"parameters": []map[string]interface{}{savedID},
			"post": operation("Saved Queries", "runSavedQuery", "Execute a saved query and cache the result set", jsonBody(ref("ViewRequest")), map[string]interface{}{
				"200": jsonResponse("First page of the result set", ref("ViewResponse")),
				"404": errorResponse("Saved query not found"),
			}),
		},
	}
}

func operation(tag, id, summary string, body map[string]interface{}, responses map[string]interface{}) map[string]interface{} {
	op := map[string]interface{}{
		"tags":        []string{tag},
		"summary":     summary,
		"operationId": id,
		"responses":   responses,
	}
	if body != nil {
		op["requestBody"] = body
	}
	return op
}

func withParameters(op map[string]interface{}, params []map[string]interface{}) map[string]interface{} {
	op["parameters"] = params
	return op
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content":  map[string]interface{}{"application/json": map[string]interface{}{"schema": schema}},
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content":     map[string]interface{}{"application/json": map[string]interface{}{"schema": schema}},
	}
}

func errorResponse(description string) map[string]interface{} {
	return jsonResponse(description, ref("ErrorResponse"))
}

func queryParam(name, description, typ string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"required":    false,
		"description": description,
		"schema":      map[string]interface{}{"type": typ},
	}
}

func viewQueryParams() []map[string]interface{} {
	sizes := make([]string, len(view.PageSizes))
	for i, n := range view.PageSizes {
		sizes[i] = strconv.Itoa(n)
	}

	return []map[string]interface{}{
		queryParam("filter", `Conditions as column:operator:value,... (operators: contains, equals, notEquals, startsWith, endsWith); a backslash escapes a comma in a value`, "string"),
		queryParam("logic", "How conditions combine: AND (default) or OR", "string"),
		queryParam("search", "Case-insensitive text matched against every column", "string"),
		queryParam("expr", "CEL boolean expression over row, e.g. row.AnnualRevenue > 1e6", "string"),
		queryParam("sort", "Sort as column:direction (asc or desc)", "string"),
		queryParam("page", "Page number starting at 1", "integer"),
		queryParam("page_size", "Rows per page, usually one of "+strings.Join(sizes, ", "), "integer"),
		queryParam("columns", "Visible columns as a comma separated list", "string"),
		queryParam("links", "Include HATEOAS navigation links", "boolean"),
	}
}

func exportQueryParams() []map[string]interface{} {
	formatNames := make([]string, len(formats.Formats))
	for i, f := range formats.Formats {
		formatNames[i] = string(f)
	}
	return []map[string]interface{}{
		{
			"name":        "format",
			"in":          "query",
			"description": "Export format; defaults to the Accept header, then json",
			"schema":      map[string]interface{}{"type": "string", "enum": formatNames},
		},
		{
			"name":        "compress",
			"in":          "query",
			"description": "Optional download compression",
			"schema":      map[string]interface{}{"type": "string", "enum": []string{"gzip", "zstd", "xz"}},
		},
	}
}

func viewResponses() map[string]interface{} {
	return map[string]interface{}{
		"200": jsonResponse("Computed page", ref("ViewResponse")),
		"400": errorResponse("Invalid view parameters"),
		"404": errorResponse("Result set not found or expired"),
	}
}

func exportResponses() map[string]interface{} {
	return map[string]interface{}{
		"200": map[string]interface{}{
			"description": "Encoded file, served as an attachment named soql-results-YYYY-MM-DD.<ext>",
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{},
				"text/csv":         map[string]interface{}{},
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": map[string]interface{}{},
				"application/parquet":                 map[string]interface{}{},
				"application/vnd.apache.arrow.stream": map[string]interface{}{},
			},
		},
		"400": errorResponse("Invalid format, compression or view parameters"),
		"404": errorResponse("Result set not found or expired"),
		"422": errorResponse("The rows cannot be encoded in the requested format"),
	}
}

// generateComponents generates the components section of the OpenAPI spec.
func (h *OpenAPIHandler) generateComponents() map[string]interface{} {
	str := map[string]interface{}{"type": "string"}
	integer := map[string]interface{}{"type": "integer"}
	row := map[string]interface{}{
		"type":                 "object",
		"description":          "Column name to scalar value, in column order",
		"additionalProperties": true,
	}
	rows := map[string]interface{}{"type": "array", "items": row}

	operators := make([]string, len(view.Operators))
	for i, op := range view.Operators {
		operators[i] = string(op)
	}

	viewProperties := map[string]interface{}{
		"search": str,
		"logic":  map[string]interface{}{"type": "string", "enum": []string{"AND", "OR"}},
		"conditions": map[string]interface{}{
			"type":  "array",
			"items": ref("FilterCondition"),
		},
		"expr":      str,
		"sort":      ref("SortSpec"),
		"page":      integer,
		"page_size": integer,
		"columns":   map[string]interface{}{"type": "array", "items": str},
		"links":     map[string]interface{}{"type": "boolean"},
	}
	withProperties := func(extra map[string]interface{}) map[string]interface{} {
		props := make(map[string]interface{}, len(viewProperties)+len(extra))
		for k, v := range viewProperties {
			props[k] = v
		}
		for k, v := range extra {
			props[k] = v
		}
		return props
	}
	exportExtra := map[string]interface{}{
		"format":   str,
		"compress": str,
	}

	return map[string]interface{}{
		"schemas": map[string]interface{}{
			"ErrorResponse": map[string]interface{}{
				"type":     "object",
				"required": []string{"error", "message", "code"},
				"properties": map[string]interface{}{
					"error":   map[string]interface{}{"type": "string", "description": "HTTP status text", "example": "Bad Request"},
					"message": map[string]interface{}{"type": "string", "description": "Detailed error message", "example": "Invalid JSON in request body"},
					"code":    map[string]interface{}{"type": "integer", "description": "HTTP status code", "example": 400},
				},
			},
			"FilterCondition": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":       str,
					"column":   str,
					"operator": map[string]interface{}{"type": "string", "enum": operators},
					"value":    str,
				},
			},
			"SortSpec": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"key":       str,
					"direction": map[string]interface{}{"type": "string", "enum": []string{"asc", "desc"}},
				},
			},
			"ViewRequest": map[string]interface{}{
				"type":       "object",
				"properties": viewProperties,
			},
			"ExportRequest": map[string]interface{}{
				"type":       "object",
				"properties": withProperties(exportExtra),
			},
			"QueryRequest": map[string]interface{}{
				"type":       "object",
				"required":   []string{"soql"},
				"properties": withProperties(map[string]interface{}{"soql": str}),
			},
			"InlineViewRequest": map[string]interface{}{
				"type":       "object",
				"required":   []string{"rows"},
				"properties": withProperties(map[string]interface{}{"rows": rows}),
			},
			"InlineExportRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"rows"},
				"properties": withProperties(map[string]interface{}{
					"rows":     rows,
					"format":   str,
					"compress": str,
				}),
			},
			"Pagination": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"page":          integer,
					"page_size":     integer,
					"total_results": integer,
					"total_pages":   integer,
				},
			},
			"ViewResponse": map[string]interface{}{
				"type":     "object",
				"required": []string{"columns", "data", "pagination"},
				"properties": map[string]interface{}{
					"result_id":         str,
					"soql":              str,
					"columns":           map[string]interface{}{"type": "array", "items": str},
					"data":              rows,
					"pagination":        ref("Pagination"),
					"execution_time_ms": integer,
					"executed_at":       map[string]interface{}{"type": "string", "format": "date-time"},
					"_links": map[string]interface{}{
						"type":                 "object",
						"additionalProperties": str,
					},
				},
			},
			"SavedQuery": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":          map[string]interface{}{"type": "integer", "format": "int64"},
					"name":        str,
					"description": str,
					"soql":        str,
					"createdAt":   map[string]interface{}{"type": "string", "format": "date-time"},
				},
			},
			"SavedQueryRequest": map[string]interface{}{
				"type":     "object",
				"required": []string{"name", "soql"},
				"properties": map[string]interface{}{
					"name":        str,
					"description": str,
					"soql":        str,
				},
			},
			"SavedQueryList": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"data":  map[string]interface{}{"type": "array", "items": ref("SavedQuery")},
					"total": integer,
				},
			},
			"Suggestions": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query":       str,
					"suggestions": map[string]interface{}{"type": "array", "items": str},
				},
			},
		},
	}
}
