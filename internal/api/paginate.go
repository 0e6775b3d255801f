package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/thesavant42/dragos-portal/internal/models"
)

const (
	ResourceIndicators = "indicators"
	ResourceProducts   = "products"

	IndicatorPageSize = 1000
	ProductPageSize   = 500
)

// FetchOptions controls a full collection fetch
type FetchOptions struct {
	// UpdatedAfter limits results to records updated after this timestamp (empty = everything)
	UpdatedAfter string
	// OnPage is called after each page with the running record count
	OnPage func(page, totalPages, fetched int)
}

// BuildPageURL constructs the URL for one page of a collection
// Example: https://portal.dragos.com/api/v1/indicators?page_size=1000&updated_after=2024-01-01&page=2
func BuildPageURL(baseURL, resource string, pageSize int, updatedAfter string, page int) string {
	u := fmt.Sprintf("%s%s?page_size=%d", baseURL, resource, pageSize)
	if updatedAfter != "" {
		u += "&updated_after=" + url.QueryEscape(updatedAfter)
	}
	return fmt.Sprintf("%s&page=%d", u, page)
}

// FetchIndicators retrieves the complete indicators collection
func (c *Client) FetchIndicators(ctx context.Context, opts FetchOptions) ([]models.Indicator, error) {
	return paginate(ctx, c, ResourceIndicators, IndicatorPageSize, opts, func(p *models.IndicatorPage) (int, []models.Indicator) {
		return p.TotalPages, p.Indicators
	})
}

// FetchReports retrieves the complete intel reports ("products") collection
func (c *Client) FetchReports(ctx context.Context, opts FetchOptions) ([]models.Report, error) {
	return paginate(ctx, c, ResourceProducts, ProductPageSize, opts, func(p *models.ReportPage) (int, []models.Report) {
		return p.TotalPages, p.Products
	})
}

// paginate requests pages 1..total_pages in order and concatenates their
// records. total_pages is re-read from every page; the latest value wins.
// Any failed page aborts the fetch and nothing is returned.
func paginate[P any, T any](ctx context.Context, c *Client, resource string, pageSize int, opts FetchOptions, extract func(*P) (int, []T)) ([]T, error) {
	var all []T
	page := 1
	totalPages := 1

	for page <= totalPages {
		var data P
		pageURL := BuildPageURL(c.baseURL, resource, pageSize, opts.UpdatedAfter, page)
		if err := c.FetchJSON(ctx, pageURL, &data); err != nil {
			return nil, fmt.Errorf("failed to fetch %s page %d: %w", resource, page, err)
		}

		var records []T
		totalPages, records = extract(&data)
		all = append(all, records...)

		c.metrics.ObservePage(resource)
		c.logger.Info("Page fetched", "resource", resource, "page", page, "totalPages", totalPages, "pageRecords", len(records), "totalRecords", len(all))

		if opts.OnPage != nil {
			opts.OnPage(page, totalPages, len(all))
		}

		page++
	}

	c.metrics.ObserveRecords(resource, len(all))
	return all, nil
}
