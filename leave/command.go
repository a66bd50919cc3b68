// Package leave implements the `leave` command.
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldops.dev/punchclock/duty"
	"fieldops.dev/punchclock/log"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/render"
	"fieldops.dev/punchclock/setup"
	"github.com/urfave/cli/v3"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "leave",
		Usage: "list and apply for leave",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list your leave applications",
				Action: List,
				Flags:  []cli.Flag{render.OutputFlag()},
			},
			{
				Name:   "apply",
				Usage:  "apply for leave",
				Action: Apply,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "type",
						Aliases:  []string{"t"},
						Usage:    "leave type (" + typeNames() + ")",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "start",
						Usage:    "first day of leave (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "end",
						Usage: "last day of leave (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "details; required for other leave",
					},
				},
			},
		},
	}
}

func typeNames() string {
	names := make([]string, 0, len(models.LeaveTypes))
	for _, lt := range models.LeaveTypes {
		names = append(names, strings.ToLower(strings.Fields(string(lt))[0]))
	}
	return strings.Join(names, ", ")
}

func List(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup.Load(ctx)
	if err != nil {
		return err
	}
	c, err := setup.Client(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	leaves, err := c.Leaves(ctx)
	if err != nil {
		return fmt.Errorf("fetching leaves: %s", models.UserMessage(err))
	}

	format, _ := render.ParseFormat(cmd.String("output"))
	return render.Write(cmd.Root().Writer, format, leaves, func() fmt.Stringer {
		return leaveTable(leaves)
	})
}

func leaveTable(leaves []models.Leave) fmt.Stringer {
	t := render.NewTable("DATE", "TYPE", "STATUS", "NOTE")
	for _, l := range leaves {
		t.Row(duty.FormatDate(l.Date), l.Reason, statusLabel(l.Status), note(l))
	}
	return t
}

func statusLabel(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// note shows the rejection reason for rejected leave and the
// description otherwise.
func note(l models.Leave) string {
	if strings.EqualFold(l.Status, "rejected") && l.RejectionReason != nil {
		return *l.RejectionReason
	}
	if l.Description != nil {
		return *l.Description
	}
	return ""
}

func application(cmd *cli.Command) (models.LeaveApplication, error) {
	lt, ok := models.ParseLeaveType(cmd.String("type"))
	if !ok {
		return models.LeaveApplication{}, fmt.Errorf("unknown leave type %q (%s)", cmd.String("type"), typeNames())
	}
	return models.LeaveApplication{
		Type:        lt,
		StartDate:   cmd.String("start"),
		EndDate:     cmd.String("end"),
		Description: cmd.String("description"),
	}, nil
}

func Apply(ctx context.Context, cmd *cli.Command) error {
	l := log.FromContext(ctx)

	app, err := application(cmd)
	if err != nil {
		return err
	}
	if err := app.Validate(); err != nil {
		return err
	}

	cfg, err := setup.Load(ctx)
	if err != nil {
		return err
	}
	c, err := setup.Client(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	l.Debug("applying for leave", "type", app.Type, "start", app.StartDate, "end", app.EndDate)
	msg, err := c.ApplyLeave(ctx, app)
	if err != nil {
		return errors.New(models.UserMessage(err))
	}
	if msg == "" {
		msg = "Leave applied successfully"
	}
	fmt.Fprintln(cmd.Root().Writer, msg)
	return nil
}
