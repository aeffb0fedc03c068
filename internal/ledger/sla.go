package ledger

import "time"

// Go-side evaluation of the SLA semantics the spreadsheet formulas encode,
// used when reading ledger rows back and in tests. Day counting follows
// NETWORKDAYS: whole weekdays between the two dates, both endpoints
// included, negated when the end precedes the start.

const (
	StatusWaitingResponse    = "Waiting Response"
	StatusWaitingSolution    = "Waiting Solution"
	StatusFeedbackOnProgress = "Feedback on progress"
	StatusMeetSLA            = "MEET SLA"
	StatusOverSLA            = "OVER SLA"
)

// NetworkDays counts weekdays from start to end inclusive.
func NetworkDays(start, end time.Time) int {
	sign := 1
	s := truncateDay(start)
	e := truncateDay(end)
	if e.Before(s) {
		s, e = e, s
		sign = -1
	}
	days := 0
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days++
		}
	}
	return sign * days
}

// ResponseDays evaluates the Response Time (Days) SLA column: the sentinel
// while no response exists, 1 for a same-timestamp response, otherwise
// NETWORKDAYS minus one.
func ResponseDays(reported time.Time, responded *time.Time) (int, string) {
	if responded == nil {
		return 0, StatusWaitingResponse
	}
	if reported.Equal(*responded) {
		return 1, ""
	}
	return NetworkDays(reported, *responded) - 1, ""
}

// ResolutionDays evaluates the Resolution Time (Days) SLA column against
// the resolution timestamp.
func ResolutionDays(reported time.Time, resolved *time.Time) (int, string) {
	if resolved == nil {
		return 0, StatusWaitingSolution
	}
	if reported.Equal(*resolved) {
		return 1, ""
	}
	return NetworkDays(reported, *resolved) - 1, ""
}

// ResolveDays evaluates the Resolve Time (Days) SLA column against the
// deployment timestamp, with the intermediate in-progress sentinel when a
// resolution exists but deployment does not.
func ResolveDays(reported time.Time, resolved, deployed *time.Time) (int, string) {
	if resolved == nil && deployed == nil {
		return 0, StatusWaitingSolution
	}
	if deployed == nil {
		return 0, StatusFeedbackOnProgress
	}
	if reported.Equal(*deployed) {
		return 1, ""
	}
	return NetworkDays(reported, *deployed) - 1, ""
}

// TargetDays maps urgency to the SLA budget in business days. The second
// return is false for unknown urgency values.
func TargetDays(urgency string) (int, bool) {
	switch urgency {
	case "High":
		return 3, true
	case "Medium":
		return 13, true
	case "Low":
		return 30, true
	default:
		return 0, false
	}
}

// StatusRecord evaluates the SLA Status Record column.
func StatusRecord(reported time.Time, resolved, deployed *time.Time, urgency string) string {
	days, sentinel := ResolveDays(reported, resolved, deployed)
	if sentinel != "" {
		return sentinel
	}
	target, ok := TargetDays(urgency)
	if !ok {
		return ""
	}
	if days <= target {
		return StatusMeetSLA
	}
	return StatusOverSLA
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
