package api

import (
	"context"
	"os"
	"path/filepath"
)

// SaveReportAsset downloads a report document and writes it to dir under
// the filename from the response header, overwriting any existing file.
//
// Failures are logged and reported through the boolean only: a report whose
// document can't be downloaded must not stop the caller's report loop.
func (c *Client) SaveReportAsset(ctx context.Context, link, dir string) (string, bool) {
	if dir == "" {
		dir = "."
	}

	c.logger.Debug("Fetching report asset", "url", link)

	asset, err := c.FetchBinary(ctx, link)
	if err != nil {
		c.metrics.ObserveAsset(false)
		c.logger.Warn("Could not fetch report asset", "url", link, "error", err)
		return "", false
	}

	// Only the base name is used so the header can't point outside dir
	name := filepath.Base(filepath.Clean("/" + asset.Filename))
	if name == "/" || name == "." {
		c.metrics.ObserveAsset(false)
		c.logger.Warn("Could not fetch report asset", "url", link, "error", ErrNoFilename)
		return "", false
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, asset.Body, 0644); err != nil {
		c.metrics.ObserveAsset(false)
		c.logger.Warn("Could not save report asset", "path", path, "error", err)
		return "", false
	}

	c.metrics.ObserveAsset(true)
	c.logger.Debug("Saved report asset", "path", path, "bytes", len(asset.Body))
	return path, true
}
