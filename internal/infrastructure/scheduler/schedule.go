package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed job schedule. It is either a fixed interval
// (Every > 0) or a minute/hour pattern where -1 matches any value.
type Schedule struct {
	Minute int
	Hour   int
	// Step fires every Step minutes when Minute is -1
	Step  int
	Every time.Duration
}

// ParseSchedule parses a schedule expression. Supported forms:
//
//	"30 2 * * *"    daily at 02:30
//	"15 * * * *"    hourly at minute 15
//	"*/10 * * * *"  every ten minutes
//	"@every 90s"    fixed interval
//	"@hourly", "@daily"
//
// Day, month and weekday fields must be "*".
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "":
		return Schedule{}, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	case "@hourly":
		return Schedule{Minute: 0, Hour: -1}, nil
	case "@daily", "@midnight":
		return Schedule{Minute: 0, Hour: 0}, nil
	}

	if rest, ok := strings.CutPrefix(expr, "@every"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return Schedule{}, fmt.Errorf("%w: %q", ErrInvalidSchedule, expr)
		}
		return Schedule{Minute: -1, Hour: -1, Every: d}, nil
	}

	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("%w: %q needs 5 fields", ErrInvalidSchedule, expr)
	}
	for _, p := range parts[2:] {
		if p != "*" {
			return Schedule{}, fmt.Errorf("%w: %q only minute and hour fields are supported", ErrInvalidSchedule, expr)
		}
	}

	s := Schedule{Minute: -1, Hour: -1}
	if step, ok := strings.CutPrefix(parts[0], "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 || n > 59 {
			return Schedule{}, fmt.Errorf("%w: minute step %q", ErrInvalidSchedule, step)
		}
		s.Step = n
	} else if parts[0] != "*" {
		n, err := strconv.Atoi(parts[0])
		if err != nil || n < 0 || n > 59 {
			return Schedule{}, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidSchedule, parts[0])
		}
		s.Minute = n
	}
	if parts[1] != "*" {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 || n > 23 {
			return Schedule{}, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidSchedule, parts[1])
		}
		s.Hour = n
	}
	return s, nil
}

// Due reports whether the schedule fires at now, given the last time it
// fired. A pattern fires at most once per matching minute.
func (s Schedule) Due(now, last time.Time) bool {
	if s.Every > 0 {
		return last.IsZero() || now.Sub(last) >= s.Every
	}
	if !last.IsZero() && now.Truncate(time.Minute).Equal(last.Truncate(time.Minute)) {
		return false
	}
	if s.Hour >= 0 && now.Hour() != s.Hour {
		return false
	}
	switch {
	case s.Minute >= 0:
		return now.Minute() == s.Minute
	case s.Step > 0:
		return now.Minute()%s.Step == 0
	default:
		return true
	}
}

func (s Schedule) String() string {
	if s.Every > 0 {
		return "@every " + s.Every.String()
	}
	field := func(v int) string {
		if v < 0 {
			return "*"
		}
		return strconv.Itoa(v)
	}
	minute := field(s.Minute)
	if s.Minute < 0 && s.Step > 0 {
		minute = "*/" + strconv.Itoa(s.Step)
	}
	return minute + " " + field(s.Hour) + " * * *"
}
