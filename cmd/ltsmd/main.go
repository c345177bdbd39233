// Command ltsmd is the LTSM terminal service manager daemon: it accepts
// RFB connections and serves each over internal/session, with
// urfave/cli/v2 subcommands for the daemon and its helpers.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ltsmd",
		Usage: "LTSM terminal service manager daemon",
		Commands: []*cli.Command{
			serveCommand,
			genpasswdCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
