package models

import (
	"sort"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type LeaveType string

const (
	LeaveSick     LeaveType = "Sick Leave"
	LeaveMarriage LeaveType = "Marriage Leave"
	LeaveVacation LeaveType = "Vacation Leave"
	LeavePersonal LeaveType = "Personal Leave"
	LeaveOther    LeaveType = "Other Leave"
)

var LeaveTypes = []LeaveType{LeaveSick, LeaveMarriage, LeaveVacation, LeavePersonal, LeaveOther}

// ParseLeaveType accepts the full name or its first word, ignoring case
// ("sick", "Sick Leave").
func ParseLeaveType(s string) (LeaveType, bool) {
	s = strings.TrimSpace(s)
	for _, lt := range LeaveTypes {
		full := string(lt)
		short := strings.Fields(full)[0]
		if strings.EqualFold(s, full) || strings.EqualFold(s, short) {
			return lt, true
		}
	}
	return "", false
}

type Leave struct {
	ID              Flex    `json:"id" yaml:"id"`
	GuardID         Flex    `json:"guard_id" yaml:"guard_id"`
	Date            string  `json:"date" yaml:"date"`
	Reason          string  `json:"reason" yaml:"reason"`
	Description     *string `json:"description" yaml:"description,omitempty"`
	Status          string  `json:"status" yaml:"status"`
	RejectionReason *string `json:"rejection_reason" yaml:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at" yaml:"created_at"`
	UpdatedAt       string  `json:"updated_at" yaml:"updated_at"`
}

type LeaveApplication struct {
	Type        LeaveType
	StartDate   string
	EndDate     string
	Description string
}

// FieldErrors maps a form field to the problem with it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid leave application: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) UserMessage() string {
	return fe.Error()
}

// Validate only checks presence and date ordering; everything else is
// the backend's call.
func (a LeaveApplication) Validate() error {
	errs := FieldErrors{}

	if a.Type == "" {
		errs["leave_type"] = "Leave type is required"
	}

	var start time.Time
	if a.StartDate == "" {
		errs["start_date"] = "Start date is required"
	} else if t, err := time.Parse(DateLayout, a.StartDate); err != nil {
		errs["start_date"] = "Start date must be YYYY-MM-DD"
	} else {
		start = t
	}

	if a.EndDate != "" {
		end, err := time.Parse(DateLayout, a.EndDate)
		switch {
		case err != nil:
			errs["end_date"] = "End date must be YYYY-MM-DD"
		case !start.IsZero() && start.After(end):
			errs["end_date"] = "End date should be after the start date"
		}
	}

	if a.Type == LeaveOther && strings.TrimSpace(a.Description) == "" {
		errs["reason"] = "Please provide a reason for other leave"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
