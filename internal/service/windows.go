/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
)

// Window is a daily time range as wall-clock offsets from the start of the day.
type Window struct {
	Start time.Duration
	End   time.Duration
}

var (
	DefaultWindow = Window{Start: 9 * time.Hour, End: 17 * time.Hour}
	FullDay       = Window{Start: 0, End: 24 * time.Hour}
)

const slotAlignment = 15 * time.Minute

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([ap]m)?$`)

func parseClock(s string) (time.Duration, bool) {
	m := clockPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, false
	}
	switch m[3] {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		hour %= 12
		if m[3] == "pm" {
			hour += 12
		}
	}
	if hour > 24 || (hour == 24 && minute > 0) {
		return 0, false
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, true
}

// ParseWindow parses ranges such as "09:00-17:00", "9-17" or "9am-5pm".
// Ranges that wrap past midnight are rejected.
func ParseWindow(raw string) (Window, bool) {
	raw = strings.NewReplacer("–", "-", "—", "-", " to ", "-").Replace(strings.TrimSpace(raw))
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return Window{}, false
	}
	start, ok := parseClock(parts[0])
	if !ok {
		return Window{}, false
	}
	end, ok := parseClock(parts[1])
	if !ok || end <= start {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// WindowFor resolves the window of a category preference on a given weekday.
// Unset or free-form ranges fall back to DefaultWindow.
func WindowFor(tw models.TimeWindow, day time.Weekday) Window {
	if tw.AllTime {
		return FullDay
	}
	raw := tw.Weekdays
	if day == time.Saturday || day == time.Sunday {
		raw = tw.Weekends
	}
	if raw == nil {
		return DefaultWindow
	}
	value := strings.TrimSpace(*raw)
	if strings.EqualFold(value, "any") {
		return FullDay
	}
	if w, ok := ParseWindow(value); ok {
		return w
	}
	return DefaultWindow
}

// midnight returns the start of t's day in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// wallClock returns the instant at which the clock on day reads offset.
// An offset of 24h is the following midnight.
func wallClock(day time.Time, offset time.Duration) time.Time {
	y, m, d := day.Date()
	days := int(offset / (24 * time.Hour))
	offset -= time.Duration(days) * 24 * time.Hour
	return time.Date(y, m, d+days, int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, day.Location())
}

func alignUp(t time.Time) time.Time {
	aligned := t.Truncate(slotAlignment)
	if aligned.Before(t) {
		aligned = aligned.Add(slotAlignment)
	}
	return aligned
}

// FindSlot returns the earliest start of a free span of the given length
// inside the window on day, not before notBefore.
func FindSlot(day time.Time, w Window, busy []BusyInterval, length time.Duration, notBefore time.Time) (time.Time, bool) {
	start := wallClock(day, w.Start)
	end := wallClock(day, w.End)
	if notBefore.After(start) {
		start = alignUp(notBefore)
	}

	sorted := append([]BusyInterval(nil), busy...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	cursor := start
	for _, b := range sorted {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(cursor.Add(length)) {
			break
		}
		cursor = b.End
	}
	if cursor.Add(length).After(end) {
		return time.Time{}, false
	}
	return cursor, true
}
