// dragos-indicators pulls indicators from the Dragos portal into a local
// SQLite cache, fetching only what changed since the last successful run.
package main

import (
	"os"

	"github.com/thesavant42/dragos-portal/internal/cli"
)

func main() {
	app := cli.App{Name: "dragos-indicators"}
	os.Exit(app.Main(os.Args[1:]))
}
