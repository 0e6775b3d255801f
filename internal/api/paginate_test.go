package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thesavant42/dragos-portal/internal/models"
	"github.com/thesavant42/dragos-portal/internal/ratelimit"
)

// mockPortal serves a paginated collection and records every request
type mockPortal struct {
	mu         sync.Mutex
	requests   []*http.Request
	totalPages func(page int) int
	failPage   int
	resource   string
}

func (m *mockPortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r)
	m.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page == m.failPage {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
		return
	}

	total := m.totalPages(page)
	var body any
	switch m.resource {
	case ResourceIndicators:
		body = models.IndicatorPage{
			TotalPages: total,
			Indicators: []models.Indicator{
				{ID: int64(page*10 + 1), Value: fmt.Sprintf("p%d-a", page)},
				{ID: int64(page*10 + 2), Value: fmt.Sprintf("p%d-b", page)},
			},
		}
	default:
		body = models.ReportPage{
			TotalPages: total,
			Products:   []models.Report{{Serial: fmt.Sprintf("DOM-%d", page)}},
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (m *mockPortal) pages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pages []string
	for _, r := range m.requests {
		pages = append(pages, r.URL.Query().Get("page"))
	}
	return pages
}

func fixedPages(n int) func(int) int {
	return func(int) int { return n }
}

func TestFetchIndicatorsAllPagesInOrder(t *testing.T) {
	portal := &mockPortal{resource: ResourceIndicators, totalPages: fixedPages(3)}
	server := httptest.NewServer(portal)
	defer server.Close()

	c := newTestClient(t, server.URL)
	var progress []int
	indicators, err := c.FetchIndicators(context.Background(), FetchOptions{
		OnPage: func(page, totalPages, fetched int) {
			progress = append(progress, fetched)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, portal.pages())
	require.Len(t, indicators, 6)
	var ids []int64
	for _, ind := range indicators {
		ids = append(ids, ind.ID)
	}
	assert.Equal(t, []int64{11, 12, 21, 22, 31, 32}, ids)
	assert.Equal(t, []int{2, 4, 6}, progress)
	assert.Equal(t, 3, c.Governor().Counts().Minute, "each page consumes one unit of budget")
}

func TestFetchIndicatorsSinglePage(t *testing.T) {
	for _, total := range []int{0, 1} {
		t.Run(strconv.Itoa(total), func(t *testing.T) {
			portal := &mockPortal{resource: ResourceIndicators, totalPages: fixedPages(total)}
			server := httptest.NewServer(portal)
			defer server.Close()

			c := newTestClient(t, server.URL)
			indicators, err := c.FetchIndicators(context.Background(), FetchOptions{})
			require.NoError(t, err)
			assert.Equal(t, []string{"1"}, portal.pages())
			assert.Len(t, indicators, 2)
		})
	}
}

func TestFetchQueryParameters(t *testing.T) {
	portal := &mockPortal{resource: ResourceProducts, totalPages: fixedPages(1)}
	server := httptest.NewServer(portal)
	defer server.Close()

	c := newTestClient(t, server.URL+"/api/v1")
	_, err := c.FetchReports(context.Background(), FetchOptions{UpdatedAfter: "2024-03-01 12:00:00"})
	require.NoError(t, err)

	require.Len(t, portal.requests, 1)
	r := portal.requests[0]
	assert.Equal(t, "/api/v1/products", r.URL.Path)
	assert.Equal(t, "500", r.URL.Query().Get("page_size"))
	assert.Equal(t, "2024-03-01 12:00:00", r.URL.Query().Get("updated_after"))
	assert.Equal(t, "1", r.URL.Query().Get("page"))
}

func TestFetchAbortsOnFailedPage(t *testing.T) {
	portal := &mockPortal{resource: ResourceIndicators, totalPages: fixedPages(3), failPage: 2}
	server := httptest.NewServer(portal)
	defer server.Close()

	c := newTestClient(t, server.URL)
	indicators, err := c.FetchIndicators(context.Background(), FetchOptions{})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	assert.Nil(t, indicators, "partial page 1 results are discarded")
	assert.Equal(t, []string{"1", "2"}, portal.pages())
}

func TestFetchLaterTotalPagesWins(t *testing.T) {
	// Vendor reports 2 pages at first, then 3
	portal := &mockPortal{resource: ResourceProducts, totalPages: func(page int) int {
		if page == 1 {
			return 2
		}
		return 3
	}}
	server := httptest.NewServer(portal)
	defer server.Close()

	c := newTestClient(t, server.URL)
	reports, err := c.FetchReports(context.Background(), FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, portal.pages())
	require.Len(t, reports, 3)
	assert.Equal(t, "DOM-3", reports[2].Serial)
}

func TestFetchStopsWhenRateLimited(t *testing.T) {
	portal := &mockPortal{resource: ResourceIndicators, totalPages: fixedPages(5)}
	server := httptest.NewServer(portal)
	defer server.Close()

	gov := ratelimit.NewGovernor(ratelimit.Limits{PerMinute: 2, PerWeek: 100})
	c := newTestClient(t, server.URL, WithGovernor(gov))
	indicators, err := c.FetchIndicators(context.Background(), FetchOptions{})

	assert.ErrorIs(t, err, ratelimit.ErrRateLimitExceeded)
	assert.Nil(t, indicators)
	assert.Equal(t, []string{"1", "2"}, portal.pages())
}

func TestBuildPageURL(t *testing.T) {
	got := BuildPageURL("https://portal.dragos.com/api/v1/", ResourceIndicators, IndicatorPageSize, "", 2)
	assert.Equal(t, "https://portal.dragos.com/api/v1/indicators?page_size=1000&page=2", got)

	got = BuildPageURL("https://portal.dragos.com/api/v1/", ResourceProducts, ProductPageSize, "2024-01-01T00:00:00Z", 1)
	assert.Equal(t, "https://portal.dragos.com/api/v1/products?page_size=500&updated_after=2024-01-01T00%3A00%3A00Z&page=1", got)
}
