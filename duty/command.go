// Package duty implements the `duty` command: today's assignment, the
// dashboard summary and the attendance report.
package duty

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldops.dev/punchclock/punch/hrclient"
	"fieldops.dev/punchclock/punch/models"
	"fieldops.dev/punchclock/render"
	"fieldops.dev/punchclock/setup"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "duty",
		Usage: "show duties, holidays and attendance",
		Commands: []*cli.Command{
			{
				Name:   "today",
				Usage:  "show the duty assigned for today",
				Action: Today,
				Flags:  []cli.Flag{render.OutputFlag()},
			},
			{
				Name:   "summary",
				Usage:  "show upcoming duties, holidays, leave and attendance counts",
				Action: Summary,
				Flags:  []cli.Flag{render.OutputFlag()},
			},
			{
				Name:   "attendance",
				Usage:  "show the attendance report by fortnight",
				Action: Attendance,
				Flags: []cli.Flag{
					render.OutputFlag(),
					&cli.StringFlag{
						Name:  "from",
						Usage: "first day of the report (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "last day of the report (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "period",
						Usage: "which fortnight to show (previous, current, all)",
						Value: "all",
					},
				},
			},
		},
	}
}

func client(ctx context.Context) (*hrclient.Client, error) {
	cfg, err := setup.Load(ctx)
	if err != nil {
		return nil, err
	}
	return setup.Client(cfg)
}

func Today(ctx context.Context, cmd *cli.Command) error {
	c, err := client(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetching today's duty: %s", models.UserMessage(err))
	}

	format, _ := render.ParseFormat(cmd.String("output"))
	return render.Write(cmd.Root().Writer, format, stats.TodayDuty, func() fmt.Stringer {
		return todayTable(stats.TodayDuty)
	})
}

func todayTable(d *models.Duty) fmt.Stringer {
	if !d.Assigned() {
		return render.KeyValues([2]string{"Today", models.NoDutyMessage})
	}
	return render.KeyValues(
		[2]string{"Date", FormatDate(d.Date)},
		[2]string{"Site", site(*d)},
		[2]string{"Shift", Shift(*d)},
	)
}

func Summary(ctx context.Context, cmd *cli.Command) error {
	c, err := client(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetching summary: %s", models.UserMessage(err))
	}

	format, _ := render.ParseFormat(cmd.String("output"))
	return render.Write(cmd.Root().Writer, format, stats, func() fmt.Stringer {
		return summaryTables(stats, time.Now())
	})
}

type sections []fmt.Stringer

func (s sections) String() string {
	parts := make([]string, 0, len(s))
	for _, sec := range s {
		parts = append(parts, sec.String())
	}
	return strings.Join(parts, "\n")
}

type heading string

func (h heading) String() string { return string(h) }

func summaryTables(stats *models.Stats, now time.Time) fmt.Stringer {
	out := sections{heading("Today"), todayTable(stats.TodayDuty)}

	out = append(out, heading("Upcoming duties"))
	if len(stats.UpcomingDuties) == 0 {
		out = append(out, heading("  none scheduled"))
	} else {
		t := render.NewTable("DATE", "WHEN", "SITE", "SHIFT")
		for _, d := range stats.UpcomingDuties {
			t.Row(FormatDate(d.Date), relativeDay(d.Date, now), site(d), Shift(d))
		}
		out = append(out, t)
	}

	out = append(out, heading("Upcoming holidays"))
	if len(stats.UpcomingHolidays) == 0 {
		out = append(out, heading("  none"))
	} else {
		t := render.NewTable("HOLIDAY", "DATE")
		for _, h := range stats.UpcomingHolidays {
			t.Row(h.HolidayName, FormatHoliday(h.Date))
		}
		out = append(out, t)
	}

	leaves := render.NewTable("LEAVE", "COUNT").
		Row("Pending", strconv.Itoa(stats.Leaves.Pending)).
		Row("Approved", strconv.Itoa(stats.Leaves.Approved)).
		Row("Rejected", strconv.Itoa(stats.Leaves.Rejected))
	attendance := render.NewTable("ATTENDANCE", "DAYS").
		Row("Present", strconv.Itoa(stats.Attendances.Present)).
		Row("Half days", strconv.Itoa(stats.Attendances.HalfDays)).
		Row("Absent", strconv.Itoa(stats.Attendances.Absent))

	return append(out, leaves, attendance)
}

// relativeDay describes a duty date relative to now at day granularity.
func relativeDay(date string, now time.Time) string {
	d, err := time.ParseInLocation(models.DateLayout, date, now.Location())
	if err != nil {
		return ""
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch days := int(d.Sub(today).Hours() / 24); days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return humanize.RelTime(d, today, "ago", "from now")
	}
}

func Attendance(ctx context.Context, cmd *cli.Command) error {
	from, err := parseDay(cmd.String("from"))
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseDay(cmd.String("to"))
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return fmt.Errorf("--from must not be after --to")
	}
	period := strings.ToLower(cmd.String("period"))
	switch period {
	case "previous", "current", "all":
	default:
		return fmt.Errorf("unknown period %q (previous, current, all)", period)
	}

	c, err := client(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Attendance(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetching attendance: %s", models.UserMessage(err))
	}
	switch period {
	case "previous":
		report.CurrentFortnight = nil
	case "current":
		report.PreviousFortnight = nil
	}

	format, _ := render.ParseFormat(cmd.String("output"))
	return render.Write(cmd.Root().Writer, format, report, func() fmt.Stringer {
		return attendanceTable(report)
	})
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(models.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func attendanceTable(report *models.AttendanceReport) fmt.Stringer {
	t := render.NewTable("FORTNIGHT", "DATE", "HOURS", "STATUS")
	add := func(label string, days []models.AttendanceDay) {
		for _, d := range days {
			hours := d.LoggedHours.String()
			if hours == "" {
				hours = "-"
			}
			t.Row(label, FormatDate(d.Date), hours, d.StatusLabel())
		}
	}
	add("previous", report.PreviousFortnight)
	add("current", report.CurrentFortnight)
	return t
}
