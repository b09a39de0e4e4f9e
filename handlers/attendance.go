package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Rahul-7375/attendance-cist/auth"
	"github.com/Rahul-7375/attendance-cist/models"
)

// OverrideAttendance records a presenter-initiated manual mark.
func (h *Handlers) OverrideAttendance(c *gin.Context) {
	var req models.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != models.StatusPresent && req.Status != models.StatusAbsent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be present or absent"})
		return
	}

	record := models.AttendanceRecord{
		ID:           uuid.NewString(),
		AttendeeID:   req.AttendeeID,
		AttendeeName: req.AttendeeName,
		Subject:      req.Subject,
		Date:         req.Date,
		Status:       req.Status,
	}
	if err := h.Ledger.Insert(c.Request.Context(), record); err != nil {
		feedError(c, "ledger", err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// DeleteAttendance removes one record by id.
func (h *Handlers) DeleteAttendance(c *gin.Context) {
	if err := h.Ledger.DeleteOne(c.Request.Context(), c.Param("id")); err != nil {
		feedError(c, "ledger", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// DeleteAttendanceBatch removes the named records. An empty list succeeds
// without touching the ledger.
func (h *Handlers) DeleteAttendanceBatch(c *gin.Context) {
	var req models.DeleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Ledger.DeleteMany(c.Request.Context(), req.IDs); err != nil {
		feedError(c, "ledger", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "count": len(req.IDs)})
}

// PurgeAttendance deletes every record for the named subjects. Batches that
// fail are reported alongside the count that committed; nothing is rolled
// back.
func (h *Handlers) PurgeAttendance(c *gin.Context) {
	var req models.PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := h.Ledger.PurgeBySubjects(c.Request.Context(), req.Subjects)
	if err != nil {
		c.JSON(http.StatusMultiStatus, gin.H{"deleted": deleted, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ListMyAttendance returns the calling attendee's records, newest first.
func (h *Handlers) ListMyAttendance(c *gin.Context) {
	records, err := h.Ledger.ListByAttendee(c.Request.Context(), auth.UserID(c))
	if err != nil {
		feedError(c, "ledger", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// ScheduleStatus reports the caller's current and next class.
func (h *Handlers) ScheduleStatus(c *gin.Context) {
	userID := auth.UserID(c)

	var department string
	if models.Role(c.GetString(auth.ContextRole)) == models.RolePresenter {
		presenter, err := h.Directory.GetPresenter(c.Request.Context(), userID)
		if err != nil {
			feedError(c, "directory", err)
			return
		}
		department = presenter.Department
	} else {
		attendee, err := h.Directory.GetAttendee(c.Request.Context(), userID)
		if err != nil {
			feedError(c, "directory", err)
			return
		}
		department = attendee.Department
	}

	entries, err := h.Timetable.ListByDepartment(c.Request.Context(), department)
	if err != nil {
		feedError(c, "timetable", err)
		return
	}
	c.JSON(http.StatusOK, h.Engine.ComputeStatus(entries, h.now()))
}
