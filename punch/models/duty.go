package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Flex is a scalar the backend sends either as a JSON string or as a
// number (ids, logged hours). null decodes to "".
type Flex string

func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flex(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Flex(n.String())
	return nil
}

func (f Flex) String() string { return string(f) }

type ClientSite struct {
	Location     string `json:"location" yaml:"location"`
	LocationCode string `json:"location_code" yaml:"location_code"`
}

// Duty is a scheduled assignment. It is display-only and plays no part
// in deciding whether a punch is allowed.
type Duty struct {
	ID         Flex        `json:"id" yaml:"id"`
	Date       string      `json:"date" yaml:"date"`
	StartTime  string      `json:"start_time" yaml:"start_time"`
	EndTime    string      `json:"end_time" yaml:"end_time"`
	ClientSite *ClientSite `json:"client_site" yaml:"client_site"`
}

// NoDutyMessage is shown when Stats carries no assigned duty for today.
const NoDutyMessage = "Duty is not assigned to you for today"

// Assigned reports whether the duty names a site, which is how the
// backend marks "no duty today".
func (d *Duty) Assigned() bool {
	return d != nil && d.ClientSite != nil
}

type Holiday struct {
	ID          Flex   `json:"id" yaml:"id"`
	HolidayName string `json:"holiday_name" yaml:"holiday_name"`
	Date        string `json:"date" yaml:"date"`
}

type LeaveCounts struct {
	Pending  int `json:"pendingLeaves" yaml:"pending"`
	Approved int `json:"approvedLeaves" yaml:"approved"`
	Rejected int `json:"rejectedLeaves" yaml:"rejected"`
}

type AttendanceCounts struct {
	Absent   int `json:"absentDays" yaml:"absent"`
	HalfDays int `json:"halfDays" yaml:"half_days"`
	Present  int `json:"presentDays" yaml:"present"`
}

type Stats struct {
	TodayDuty        *Duty            `json:"today_duty" yaml:"today_duty"`
	UpcomingDuties   []Duty           `json:"upcoming_duties" yaml:"upcoming_duties"`
	UpcomingHolidays []Holiday        `json:"upcoming_holidays" yaml:"upcoming_holidays"`
	Leaves           LeaveCounts      `json:"leaves" yaml:"leaves"`
	Attendances      AttendanceCounts `json:"attendances" yaml:"attendances"`
}

type AttendanceDay struct {
	ID          Flex   `json:"id" yaml:"id"`
	Date        string `json:"date" yaml:"date"`
	LoggedHours Flex   `json:"LoggedHours" yaml:"logged_hours"`
	Status      string `json:"status" yaml:"status"`
}

// StatusLabel is the human form of Status.
func (a AttendanceDay) StatusLabel() string {
	switch strings.ToLower(a.Status) {
	case "pending":
		return "Pending"
	case "present":
		return "Present"
	case "duty-not-assigned":
		return "N/A"
	case "":
		return ""
	}
	return strings.ToUpper(a.Status[:1]) + a.Status[1:]
}

type AttendanceReport struct {
	PreviousFortnight []AttendanceDay `json:"previousFortnight" yaml:"previous_fortnight"`
	CurrentFortnight  []AttendanceDay `json:"currentFortnight" yaml:"current_fortnight"`
}
