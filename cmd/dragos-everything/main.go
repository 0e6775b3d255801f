// dragos-everything pulls indicators, intel reports and report documents
// from the Dragos portal into a local SQLite cache.
//
// A run frequency of once every 6 hours at a random minute keeps well
// inside the portal's API quotas.
package main

import (
	"os"

	"github.com/thesavant42/dragos-portal/internal/cli"
)

func main() {
	app := cli.App{Name: "dragos-everything", IncludeReports: true, DefaultSaveDir: "."}
	os.Exit(app.Main(os.Args[1:]))
}
