// logtx CLI - reconstructs request transactions from a caching
// reverse-proxy's shared event log.
package main

import "github.com/getlogtx/logtx/pkg/cli"

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
