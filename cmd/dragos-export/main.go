// dragos-export writes a Markdown digest of the local portal cache.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thesavant42/dragos-portal/internal/cli"
	"github.com/thesavant42/dragos-portal/internal/db"
	"github.com/thesavant42/dragos-portal/internal/export"
	"github.com/thesavant42/dragos-portal/internal/ui"
)

func main() {
	dbPath := flag.String("db", "dragos.sqlite3", "path to the SQLite cache")
	outDir := flag.String("out", ".", "directory to write the export into")
	debug := flag.Bool("debug", false, "print debugging information")
	flag.Parse()

	logger := cli.NewLogger(os.Stderr, *debug)

	database, err := db.New(*dbPath)
	if err != nil {
		ui.PrintError(fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	now := time.Now()
	snap, err := export.Collect(database, now)
	if err != nil {
		ui.PrintError(fmt.Sprintf("Failed to read cache: %v", err))
		os.Exit(1)
	}

	filename := filepath.Join(*outDir, fmt.Sprintf("dragos-export-%s.md", now.Format("20060102-150405")))
	f, err := os.Create(filename)
	if err != nil {
		ui.PrintError(fmt.Sprintf("Failed to create file: %v", err))
		os.Exit(1)
	}
	defer f.Close()

	if err := export.WriteMarkdown(f, snap); err != nil {
		ui.PrintError(fmt.Sprintf("Failed to write export: %v", err))
		os.Exit(1)
	}
	logger.Debug("Export written", "path", filename, "indicators", snap.Indicators, "reports", len(snap.Reports))

	ui.PrintSuccess(fmt.Sprintf("Exported to %s", filename))
}
