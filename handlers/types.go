package handlers

import (
	"time"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// PaginationInfo represents pagination metadata.
type PaginationInfo struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalResults int `json:"total_results"`
	TotalPages   int `json:"total_pages"`
}

// ViewResponse is one page of a result set.
type ViewResponse struct {
	ResultID        string            `json:"result_id,omitempty"`
	SOQL            string            `json:"soql,omitempty"`
	Columns         []string          `json:"columns"`
	Data            []resultset.Row   `json:"data"`
	Pagination      PaginationInfo    `json:"pagination"`
	ExecutionTimeMs *int64            `json:"execution_time_ms,omitempty"`
	ExecutedAt      *time.Time        `json:"executed_at,omitempty"`
	Links           map[string]string `json:"_links,omitempty"`
}

// QueryRequest represents a SOQL execution request. View parameters shape
// the first page of the response.
type QueryRequest struct {
	SOQL string `json:"soql"`
	ViewRequest
}

// InlineViewRequest carries the rows of a stateless view.
type InlineViewRequest struct {
	Rows []resultset.Row `json:"rows"`
	ViewRequest
}

// InlineExportRequest carries the rows of a stateless export.
type InlineExportRequest struct {
	Rows []resultset.Row `json:"rows"`
	ExportRequest
}

// SavedQueryRequest represents a saved query create or update request.
type SavedQueryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SOQL        string `json:"soql"`
}
