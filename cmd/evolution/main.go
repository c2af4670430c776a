// Command evolution records contributions and inspects progression state
// for a storage root.
package main

import (
	"os"

	// Embedded zone database so configured timezones load on minimal hosts.
	_ "time/tzdata"

	"github.com/DockerDiscordControl/DockerDiscordControl-sub002/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
