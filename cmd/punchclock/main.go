package main

import (
	"context"
	"os"

	"fieldops.dev/punchclock/duty"
	"fieldops.dev/punchclock/leave"
	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punchctl"
	"fieldops.dev/punchclock/session"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "punchclock",
		Usage: "field attendance: punch in and out, duties and leave",
		Commands: []*cli.Command{
			punchctl.Command(),
			duty.Command(),
			leave.Command(),
			session.Command(),
		},
	}

	ctx := context.Background()
	logger := log.New("punchclock")
	ctx = log.IntoContext(ctx, logger.With("command", cmd.Name))

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(-1)
	}
}
