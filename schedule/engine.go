// Package schedule computes which timetable entry is in session and which
// one starts next at a given instant.
package schedule

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Rahul-7375/attendance-cist/models"
)

// Engine resolves schedule status against a timetable. Entries with a
// missing or invalid duration get defaultDuration instead of failing.
type Engine struct {
	defaultDuration time.Duration
}

func NewEngine(defaultDuration time.Duration) Engine {
	return Engine{defaultDuration: defaultDuration}
}

// ComputeStatus returns the entry covering now (at most one, since same-day
// overlaps are disallowed at creation) and the chronologically nearest
// future entry, scanning day by day with a 7-day wrap. Both are nil when
// the timetable is empty.
func (e Engine) ComputeStatus(entries []models.TimetableEntry, now time.Time) models.ScheduleStatus {
	var status models.ScheduleStatus
	if len(entries) == 0 {
		return status
	}

	today := now.Weekday().String()
	nowMin := now.Hour()*60 + now.Minute()

	var nextToday *models.TimetableEntry
	nextStart := -1
	for i := range entries {
		entry := &entries[i]
		if !strings.EqualFold(entry.Day, today) {
			continue
		}
		start, ok := ParseStartMinutes(entry.StartTime)
		if !ok {
			continue
		}
		end := start + e.durationMinutes(entry)
		if start <= nowMin && nowMin < end {
			id := entry.ID
			status.CurrentID = &id
		}
		if start > nowMin && (nextStart == -1 || start < nextStart) {
			nextToday = entry
			nextStart = start
		}
	}
	if nextToday != nil {
		id := nextToday.ID
		status.NextID = &id
		return status
	}

	// Nothing left today: the first non-empty day ahead wins, wrapping back
	// around to today after a full week.
	for offset := 1; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset).Weekday().String()
		if entry := earliestOn(entries, day); entry != nil {
			id := entry.ID
			status.NextID = &id
			return status
		}
	}
	return status
}

func (e Engine) durationMinutes(entry *models.TimetableEntry) int {
	if entry.DurationMinutes <= 0 {
		return int(e.defaultDuration.Minutes())
	}
	return entry.DurationMinutes
}

func earliestOn(entries []models.TimetableEntry, day string) *models.TimetableEntry {
	var dayEntries []*models.TimetableEntry
	for i := range entries {
		if strings.EqualFold(entries[i].Day, day) {
			if _, ok := ParseStartMinutes(entries[i].StartTime); ok {
				dayEntries = append(dayEntries, &entries[i])
			}
		}
	}
	if len(dayEntries) == 0 {
		return nil
	}
	sort.Slice(dayEntries, func(i, j int) bool {
		a, _ := ParseStartMinutes(dayEntries[i].StartTime)
		b, _ := ParseStartMinutes(dayEntries[j].StartTime)
		return a < b
	})
	return dayEntries[0]
}

// ParseStartMinutes converts "HH:MM" to minutes since midnight.
func ParseStartMinutes(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
