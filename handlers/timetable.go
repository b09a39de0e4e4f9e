package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Rahul-7375/attendance-cist/auth"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/schedule"
)

// ListTimetable returns the presenter's department timetable.
func (h *Handlers) ListTimetable(c *gin.Context) {
	presenter, err := h.Directory.GetPresenter(c.Request.Context(), auth.UserID(c))
	if err != nil {
		feedError(c, "directory", err)
		return
	}
	entries, err := h.Timetable.ListByDepartment(c.Request.Context(), presenter.Department)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// CreateTimetableEntry adds a class to the presenter's department schedule,
// refusing same-day overlaps within the department.
func (h *Handlers) CreateTimetableEntry(c *gin.Context) {
	var req models.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	presenter, err := h.Directory.GetPresenter(c.Request.Context(), auth.UserID(c))
	if err != nil {
		feedError(c, "directory", err)
		return
	}

	entry := models.TimetableEntry{
		Day:             req.Day,
		StartTime:       req.StartTime,
		Subject:         req.Subject,
		DurationMinutes: req.DurationMinutes,
		OwnerID:         presenter.ID,
		OwnerName:       presenter.Name,
		DepartmentID:    presenter.Department,
	}

	existing, err := h.Timetable.ListByDepartment(c.Request.Context(), presenter.Department)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	if conflict := findOverlap(existing, entry, "", h.Cfg.Protocol.DefaultDurationMinutes); conflict != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "entry overlaps an existing class", "conflictsWith": conflict.ID})
		return
	}

	created, err := h.Timetable.Create(c.Request.Context(), entry)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateTimetableEntry edits an entry the presenter owns. The id never
// changes; the entry being edited is excluded from the overlap check.
func (h *Handlers) UpdateTimetableEntry(c *gin.Context) {
	id := c.Param("id")

	var req models.TimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	presenter, err := h.Directory.GetPresenter(c.Request.Context(), auth.UserID(c))
	if err != nil {
		feedError(c, "directory", err)
		return
	}

	current, err := h.Timetable.Get(c.Request.Context(), id)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	if current.DepartmentID != presenter.Department {
		c.JSON(http.StatusForbidden, gin.H{"error": "entry belongs to another department"})
		return
	}

	updated := current
	updated.Day = req.Day
	updated.StartTime = req.StartTime
	updated.Subject = req.Subject
	updated.DurationMinutes = req.DurationMinutes

	existing, err := h.Timetable.ListByDepartment(c.Request.Context(), presenter.Department)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	if conflict := findOverlap(existing, updated, id, h.Cfg.Protocol.DefaultDurationMinutes); conflict != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "entry overlaps an existing class", "conflictsWith": conflict.ID})
		return
	}

	if err := h.Timetable.Update(c.Request.Context(), updated); err != nil {
		feedError(c, "timetable", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteTimetableEntry removes an entry in the presenter's department.
func (h *Handlers) DeleteTimetableEntry(c *gin.Context) {
	id := c.Param("id")

	presenter, err := h.Directory.GetPresenter(c.Request.Context(), auth.UserID(c))
	if err != nil {
		feedError(c, "directory", err)
		return
	}
	current, err := h.Timetable.Get(c.Request.Context(), id)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	if current.DepartmentID != presenter.Department {
		c.JSON(http.StatusForbidden, gin.H{"error": "entry belongs to another department"})
		return
	}

	if err := h.Timetable.Delete(c.Request.Context(), id); err != nil {
		feedError(c, "timetable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// findOverlap returns the first same-department, same-day entry whose
// [start, start+duration) interval intersects the candidate's, skipping
// excludeID (the entry being edited).
func findOverlap(entries []models.TimetableEntry, candidate models.TimetableEntry, excludeID string, defaultDuration int) *models.TimetableEntry {
	cStart, ok := schedule.ParseStartMinutes(candidate.StartTime)
	if !ok {
		return nil
	}
	cEnd := cStart + durationOrDefault(candidate.DurationMinutes, defaultDuration)

	for i := range entries {
		e := &entries[i]
		if e.ID == excludeID || e.Day != candidate.Day || e.DepartmentID != candidate.DepartmentID {
			continue
		}
		start, ok := schedule.ParseStartMinutes(e.StartTime)
		if !ok {
			continue
		}
		end := start + durationOrDefault(e.DurationMinutes, defaultDuration)
		if cStart < end && start < cEnd {
			return e
		}
	}
	return nil
}

func durationOrDefault(minutes, fallback int) int {
	if minutes <= 0 {
		return fallback
	}
	return minutes
}
