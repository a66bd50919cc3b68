package duty

import (
	"strings"
	"time"

	"fieldops.dev/punchclock/punch/models"
)

// Placeholder stands in for a clock time the backend left empty.
const Placeholder = "--:--"

var clockLayouts = []string{"15:04:05", "15:04"}

// FormatDate turns a backend date (2025-03-14) into 14-03-2025. Anything
// that is not three dash-separated parts comes back unchanged.
func FormatDate(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// FormatClock turns a backend clock time (17:30:00) into 5:30 PM.
func FormatClock(s string) string {
	if s == "" {
		return Placeholder
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("3:04 PM")
		}
	}
	return s
}

// FormatHoliday spells out a holiday date: March 14, 2025.
func FormatHoliday(s string) string {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format("January 2, 2006")
}

// Shift is the "start - end" span of a duty.
func Shift(d models.Duty) string {
	return FormatClock(d.StartTime) + " - " + FormatClock(d.EndTime)
}

func site(d models.Duty) string {
	if d.ClientSite == nil {
		return ""
	}
	if d.ClientSite.LocationCode == "" {
		return d.ClientSite.Location
	}
	return d.ClientSite.Location + " (" + d.ClientSite.LocationCode + ")"
}
