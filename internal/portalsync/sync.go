// Package portalsync pulls indicators and intel reports from the portal
// into the local SQLite cache.
package portalsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/thesavant42/dragos-portal/internal/api"
	"github.com/thesavant42/dragos-portal/internal/metrics"
	"github.com/thesavant42/dragos-portal/internal/models"
)

// cutoffFormat is the updated_after format sent to the portal
const cutoffFormat = "2006-01-02T15:04:05Z"

// Portal is the subset of the API client a sync run needs
type Portal interface {
	FetchIndicators(ctx context.Context, opts api.FetchOptions) ([]models.Indicator, error)
	FetchReports(ctx context.Context, opts api.FetchOptions) ([]models.Report, error)
	SaveReportAsset(ctx context.Context, link, dir string) (string, bool)
}

// Store is the local cache a sync run writes to
type Store interface {
	UpsertIndicators(records []models.IndicatorRecord) error
	UpsertReports(records []models.ReportRecord) error
	LastRun() (time.Time, bool, error)
	AppendRunLog(date time.Time, count int) error
	PurgeIndicators() error
}

// Options controls one sync run
type Options struct {
	Reset          bool   // purge cached indicators and ignore the last-run cut-off
	IncludeReports bool   // also fetch reports and their documents
	SaveDir        string // indicator JSON dump and report documents; empty disables the dump
	OnPage         func(resource string, page, totalPages, fetched int)
}

// Result summarizes a finished sync run
type Result struct {
	RunID        string
	Since        string // updated_after cut-off used ("" for a full fetch)
	Indicators   int
	Reports      int
	AssetsSaved  int
	AssetsFailed int
	DumpPath     string
	Finished     time.Time
	Elapsed      time.Duration
}

// Runner performs sync runs
type Runner struct {
	Portal  Portal
	Store   Store
	Logger  *log.Logger
	Metrics *metrics.Metrics
	now     func() time.Time
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(portal Portal, store Store, logger *log.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Portal:  portal,
		Store:   store,
		Logger:  logger,
		Metrics: m,
		now:     time.Now,
	}
}

// Run fetches everything updated since the last logged run, writes it to
// the cache and logs the run. Indicator and report fetch failures abort the
// run before the run log is written, so the next run retries the same window.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	start := r.now()
	result := &Result{RunID: uuid.NewString()}
	logger := r.Logger.With("run", result.RunID)

	since, err := r.cutoff(logger, opts.Reset)
	if err != nil {
		return nil, err
	}
	result.Since = since

	fetchOpts := func(resource string) api.FetchOptions {
		fo := api.FetchOptions{UpdatedAfter: since}
		if opts.OnPage != nil {
			fo.OnPage = func(page, totalPages, fetched int) {
				opts.OnPage(resource, page, totalPages, fetched)
			}
		}
		return fo
	}

	indicators, err := r.Portal.FetchIndicators(ctx, fetchOpts(api.ResourceIndicators))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch indicators: %w", err)
	}
	result.Indicators = len(indicators)
	logger.Info("Found indicators", "count", len(indicators))

	if opts.SaveDir != "" {
		path, err := r.dumpIndicators(opts.SaveDir, indicators, start)
		if err != nil {
			return nil, err
		}
		result.DumpPath = path
		logger.Debug("Saved indicator payload", "path", path)
	}

	records := make([]models.IndicatorRecord, 0, len(indicators))
	for i := range indicators {
		records = append(records, indicators[i].ToRecord())
	}
	if err := r.Store.UpsertIndicators(records); err != nil {
		return nil, err
	}

	if opts.IncludeReports {
		if err := r.syncReports(ctx, logger, opts, fetchOpts(api.ResourceProducts), result); err != nil {
			return nil, err
		}
	}

	// The run date becomes the cut-off for the next run
	finished := r.now()
	if err := r.Store.AppendRunLog(finished, result.Indicators); err != nil {
		return nil, err
	}

	result.Finished = finished
	result.Elapsed = finished.Sub(start)
	r.Metrics.ObserveRun(finished, result.Elapsed)
	logger.Info("Sync complete", "indicators", result.Indicators, "reports", result.Reports,
		"assetsSaved", result.AssetsSaved, "assetsFailed", result.AssetsFailed, "elapsed", result.Elapsed)

	return result, nil
}

// cutoff resolves the updated_after filter for this run
func (r *Runner) cutoff(logger *log.Logger, reset bool) (string, error) {
	if reset {
		logger.Debug("Purging indicators")
		if err := r.Store.PurgeIndicators(); err != nil {
			return "", err
		}
		return "", nil
	}

	last, ok, err := r.Store.LastRun()
	if err != nil {
		return "", err
	}
	if !ok {
		logger.Debug("No previous run found")
		return "", nil
	}

	since := last.UTC().Format(cutoffFormat)
	logger.Debug("Last run", "date", since)
	return since, nil
}

func (r *Runner) syncReports(ctx context.Context, logger *log.Logger, opts Options, fetchOpts api.FetchOptions, result *Result) error {
	reports, err := r.Portal.FetchReports(ctx, fetchOpts)
	if err != nil {
		return fmt.Errorf("failed to fetch reports: %w", err)
	}
	result.Reports = len(reports)
	logger.Info("Found reports", "count", len(reports))

	records := make([]models.ReportRecord, 0, len(reports))
	for i := range reports {
		records = append(records, reports[i].ToRecord())
	}
	if err := r.Store.UpsertReports(records); err != nil {
		return err
	}

	for i := range reports {
		if !reports[i].HasAsset() {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := r.Portal.SaveReportAsset(ctx, reports[i].ReportLink, opts.SaveDir); ok {
			result.AssetsSaved++
		} else {
			result.AssetsFailed++
		}
	}

	return nil
}

// dumpIndicators writes the raw indicator payload as dragos_indicators_<epoch>.json
func (r *Runner) dumpIndicators(dir string, indicators []models.Indicator, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create save directory: %w", err)
	}

	if indicators == nil {
		indicators = []models.Indicator{}
	}
	data, err := json.Marshal(indicators)
	if err != nil {
		return "", fmt.Errorf("failed to encode indicators: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("dragos_indicators_%d.json", at.UTC().Unix()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
