package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldSet holds a cron field's allowed values as a bitmask. Minute needs
// 60 bits, everything else fits too.
type fieldSet uint64

func (f fieldSet) has(v int) bool { return f&(1<<uint(v)) != 0 }

// Schedule is a parsed 5-field cron expression
// (minute hour day-of-month month day-of-week).
type Schedule struct {
	minute fieldSet
	hour   fieldSet
	dom    fieldSet
	month  fieldSet
	dow    fieldSet
}

func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression needs 5 fields, got %d", len(fields))
	}

	var s Schedule
	var err error
	if s.minute, err = parseField(fields[0], 0, 59); err != nil {
		return nil, fmt.Errorf("minute: %w", err)
	}
	if s.hour, err = parseField(fields[1], 0, 23); err != nil {
		return nil, fmt.Errorf("hour: %w", err)
	}
	if s.dom, err = parseField(fields[2], 1, 31); err != nil {
		return nil, fmt.Errorf("day-of-month: %w", err)
	}
	if s.month, err = parseField(fields[3], 1, 12); err != nil {
		return nil, fmt.Errorf("month: %w", err)
	}
	if s.dow, err = parseField(fields[4], 0, 6); err != nil {
		return nil, fmt.Errorf("day-of-week: %w", err)
	}
	return &s, nil
}

// Matches reports whether t falls on the schedule, at minute resolution.
func (s *Schedule) Matches(t time.Time) bool {
	return s.minute.has(t.Minute()) &&
		s.hour.has(t.Hour()) &&
		s.dom.has(t.Day()) &&
		s.month.has(int(t.Month())) &&
		s.dow.has(int(t.Weekday()))
}

// parseField handles *, */n, n, n-m, n-m/s and comma-separated lists.
func parseField(field string, min, max int) (fieldSet, error) {
	var set fieldSet
	for _, part := range strings.Split(field, ",") {
		sub, err := parsePart(part, min, max)
		if err != nil {
			return 0, err
		}
		set |= sub
	}
	return set, nil
}

func parsePart(part string, min, max int) (fieldSet, error) {
	lo, hi, step := min, max, 1

	rangePart := part
	if i := strings.IndexByte(part, '/'); i >= 0 {
		s, err := strconv.Atoi(part[i+1:])
		if err != nil || s <= 0 {
			return 0, fmt.Errorf("invalid step %q", part)
		}
		step = s
		rangePart = part[:i]
	}

	switch {
	case rangePart == "*":
		// full range
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		var err error
		if lo, err = strconv.Atoi(bounds[0]); err != nil {
			return 0, fmt.Errorf("invalid range start %q", bounds[0])
		}
		if hi, err = strconv.Atoi(bounds[1]); err != nil {
			return 0, fmt.Errorf("invalid range end %q", bounds[1])
		}
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", rangePart)
		}
		lo, hi = v, v
	}

	if lo < min || hi > max || lo > hi {
		return 0, fmt.Errorf("%q out of range %d-%d", part, min, max)
	}

	var set fieldSet
	for v := lo; v <= hi; v += step {
		set |= 1 << uint(v)
	}
	return set, nil
}
