package formats

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// WriteJSON writes rows as a JSON array indented by two spaces, keeping each
// row's column order. An empty set is written as [].
func WriteJSON(w io.Writer, rows []resultset.Row) error {
	if rows == nil {
		rows = []resultset.Row{}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// LinksConfig contains configuration for generating HATEOAS links.
type LinksConfig struct {
	Enabled  bool       // Whether to include _links in response
	BasePath string     // Base path for generating links (e.g., "/soql/results/<id>/view")
	Query    url.Values // Original query parameters to preserve
}

// PageLinks returns navigation links for a paginated view, or nil when links
// are disabled.
func PageLinks(cfg *LinksConfig, page, pageSize, totalPages int) map[string]string {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return generateHATEOASLinks(cfg.BasePath, cfg.Query, page, pageSize, totalPages)
}

// generateHATEOASLinks generates navigation links for paginated responses.
func generateHATEOASLinks(basePath string, query url.Values, page, pageSize, totalPages int) map[string]string {
	links := make(map[string]string)

	buildURL := func(targetPage int) string {
		q := make(url.Values)
		for key, values := range query {
			if key != "page" && key != "links" {
				for _, v := range values {
					q.Add(key, v)
				}
			}
		}
		q.Set("page", fmt.Sprintf("%d", targetPage))
		q.Set("page_size", fmt.Sprintf("%d", pageSize))
		q.Set("links", "true")
		return fmt.Sprintf("%s?%s", basePath, q.Encode())
	}

	links["self"] = buildURL(page)
	links["first"] = buildURL(1)

	if totalPages > 0 {
		links["last"] = buildURL(totalPages)
	}
	if page > 1 {
		links["prev"] = buildURL(min(page-1, max(totalPages, 1)))
	}
	if page < totalPages {
		links["next"] = buildURL(page + 1)
	}

	return links
}
