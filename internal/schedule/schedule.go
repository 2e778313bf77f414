// Package schedule validates the schedule portion of post and task submissions
// before they are accepted for persistence.
package schedule

import (
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Input is the raw schedule sub-form as submitted. The four string fields are
// only meaningful when SchedulePost is set.
type Input struct {
	SchedulePost bool   `json:"schedulePost"`
	ScheduleDate string `json:"scheduleDate"`
	ScheduleTime string `json:"scheduleTime"`
	EndDate      string `json:"endDate"`
	EndTime      string `json:"endTime"`
}

// Result maps field names to human-readable messages. An empty result means
// the input is acceptable.
type Result struct {
	Errors map[string]string `json:"errors,omitempty"`
}

func (r Result) Valid() bool { return len(r.Errors) == 0 }

func (r *Result) add(field, msg string) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[field] = msg
}

// Compose combines a "2006-01-02" date and a "15:04" time into a local instant.
func Compose(date, clock string) (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), time.Local)
}

// Validate applies the cross-field scheduling rules. It is a pure function:
// it never mutates the input and has no side effects, so handlers can re-run
// it on every change of the record.
//
// Rules, in order:
//   - SchedulePost unset: accept regardless of the date/time fields.
//   - scheduleDate and scheduleTime are both required.
//   - endDate/endTime are optional but must be provided as a pair.
//   - with all four present, the end instant must be strictly after the start.
func Validate(in Input) Result {
	var res Result
	if !in.SchedulePost {
		return res
	}

	startDate := strings.TrimSpace(in.ScheduleDate)
	startTime := strings.TrimSpace(in.ScheduleTime)
	if startDate == "" {
		res.add("scheduleDate", "start date is required")
	}
	if startTime == "" {
		res.add("scheduleTime", "start time is required")
	}

	endDate := strings.TrimSpace(in.EndDate)
	endTime := strings.TrimSpace(in.EndTime)
	if endDate == "" && endTime == "" {
		// Open-ended schedule; nothing further to check against.
		return res
	}
	if endDate == "" {
		res.add("endDate", "end date is required when an end time is set")
	}
	if endTime == "" {
		res.add("endTime", "end time is required when an end date is set")
	}
	if !res.Valid() {
		return res
	}

	start, err := Compose(startDate, startTime)
	if err != nil {
		res.add("scheduleDate", "start date/time is not a valid date")
		return res
	}
	end, err := Compose(endDate, endTime)
	if err != nil {
		res.add("endDate", "end date/time is not a valid date")
		return res
	}
	if !end.After(start) {
		res.add("endTime", "end time must be after the start time")
	}
	return res
}
