// Package export renders the local cache as a Markdown digest.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/thesavant42/dragos-portal/internal/db"
	"github.com/thesavant42/dragos-portal/internal/models"
)

// Snapshot is everything the digest reports on
type Snapshot struct {
	Generated  time.Time
	Indicators int
	Types      []db.TypeCount
	Reports    []models.ReportRecord
	Runs       []db.RunLog
}

// Source is the subset of the cache the exporter reads
type Source interface {
	CountIndicators() (int, error)
	IndicatorTypeCounts() ([]db.TypeCount, error)
	ListReports() ([]models.ReportRecord, error)
	RecentRuns(limit int) ([]db.RunLog, error)
}

// RecentRunLimit caps how many run log entries the digest lists
const RecentRunLimit = 10

// Collect reads a snapshot from the cache
func Collect(src Source, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{Generated: now}

	var err error
	if snap.Indicators, err = src.CountIndicators(); err != nil {
		return nil, err
	}
	if snap.Types, err = src.IndicatorTypeCounts(); err != nil {
		return nil, err
	}
	if snap.Reports, err = src.ListReports(); err != nil {
		return nil, err
	}
	if snap.Runs, err = src.RecentRuns(RecentRunLimit); err != nil {
		return nil, err
	}
	return snap, nil
}

// WriteMarkdown writes the digest
func WriteMarkdown(w io.Writer, snap *Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Dragos Portal Cache Export\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", snap.Generated.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "## Sync Runs\n\n")
	if len(snap.Runs) == 0 {
		fmt.Fprintf(&b, "*No successful runs logged*\n\n")
	} else {
		fmt.Fprintf(&b, "| Date (UTC) | Indicators |\n")
		fmt.Fprintf(&b, "|------------|------------|\n")
		for _, run := range snap.Runs {
			fmt.Fprintf(&b, "| %s | %d |\n", run.Date.UTC().Format(time.RFC3339), run.Count)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Indicators\n\n")
	fmt.Fprintf(&b, "- **Total**: %d\n\n", snap.Indicators)
	if len(snap.Types) > 0 {
		fmt.Fprintf(&b, "| Type | Count |\n")
		fmt.Fprintf(&b, "|------|-------|\n")
		for _, tc := range snap.Types {
			fmt.Fprintf(&b, "| %s | %d |\n", orDash(tc.IndicatorType), tc.Count)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Reports\n\n")
	fmt.Fprintf(&b, "- **Total**: %d\n\n", len(snap.Reports))
	if len(snap.Reports) > 0 {
		fmt.Fprintf(&b, "| Serial | Title | TLP | Threat Level | IOCs | Released | Tags |\n")
		fmt.Fprintf(&b, "|--------|-------|-----|--------------|------|----------|------|\n")
		for _, r := range snap.Reports {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %s | %s |\n",
				r.Serial, cell(r.Title), orDash(r.TLPLevel), r.ThreatLevel, r.IOCCount,
				orDash(r.ReleaseDate), cell(r.Tags))
		}
		fmt.Fprintf(&b, "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// cell escapes a value for use inside a Markdown table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\n", " ")
	return orDash(strings.TrimSpace(s))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
