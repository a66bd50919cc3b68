// Package punchctl implements the `punch` command.
package punchctl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch"
	"fieldops.dev/punchclock/punch/localapi"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/render"
	"fieldops.dev/punchclock/setup"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "punch",
		Usage: "punch in and out of duty",
		Commands: []*cli.Command{
			{
				Name:   "toggle",
				Usage:  "punch in, or punch out if already punched in",
				Action: Toggle,
				Flags:  []cli.Flag{render.OutputFlag()},
			},
			{
				Name:   "status",
				Usage:  "show whether you are punched in",
				Action: Status,
				Flags:  []cli.Flag{render.OutputFlag()},
			},
			{
				Name:   "serve",
				Usage:  "serve the punch controller on a local HTTP API",
				Action: Serve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "listen address; overrides PUNCHCLOCK_LOCAL_LISTEN_ADDR",
					},
				},
			},
		},
	}
}

func Toggle(ctx context.Context, cmd *cli.Command) error {
	l := log.FromContext(ctx)

	cfg, err := setup.Load(ctx)
	if err != nil {
		return err
	}
	p, err := setup.NewPunch(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	next := p.Controller.Snapshot().Next
	l.Debug("toggling punch", "direction", next)

	err = p.Controller.TogglePunch(ctx)
	snap := p.Controller.Snapshot()

	format, _ := render.ParseFormat(cmd.String("output"))
	out := cmd.Root().Writer
	if format != render.Table {
		if werr := render.Write(out, format, snap, nil); werr != nil {
			return werr
		}
		return err
	}

	if err != nil {
		fmt.Fprintln(out, models.UserMessage(err))
		return err
	}
	fmt.Fprintln(out, snap.Notice)
	if snap.LastError != "" {
		fmt.Fprintln(out, snap.LastError)
	}
	return nil
}

func Status(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup.Load(ctx)
	if err != nil {
		return err
	}
	p, err := setup.NewPunch(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	format, _ := render.ParseFormat(cmd.String("output"))
	snap := p.Controller.Snapshot()
	return render.Write(cmd.Root().Writer, format, snap, func() fmt.Stringer {
		return statusTable(snap)
	})
}

func statusTable(snap punch.Snapshot) fmt.Stringer {
	pairs := [][2]string{
		{"State", string(snap.State)},
		{"Next", "punch " + string(snap.Next)},
	}
	if snap.Record != nil {
		pairs = append(pairs, [2]string{"In time", describeInTime(snap.Record)})
	}
	if snap.LastError != "" {
		pairs = append(pairs, [2]string{"Error", snap.LastError})
	}
	return render.KeyValues(pairs...)
}

// describeInTime adds a relative form when the backend sent a full
// timestamp.
func describeInTime(rec *models.OpenPunch) string {
	t, ok := rec.InTimeValue()
	if !ok || t.Year() == 0 {
		return rec.InTime
	}
	return fmt.Sprintf("%s (%s)", rec.InTime, humanize.Time(t))
}

func Serve(ctx context.Context, cmd *cli.Command) error {
	l := log.FromContext(ctx)

	cfg, err := setup.Load(ctx)
	if err != nil {
		return err
	}
	p, err := setup.NewPunch(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	addr := cfg.Local.ListenAddr
	if listen := cmd.String("listen"); listen != "" {
		addr = listen
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := localapi.New(p.Controller, p.Client, log.SubLogger(l, "localapi"))
	return srv.Serve(ctx, addr)
}
