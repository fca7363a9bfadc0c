package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"markbook/internal/activity"
	"markbook/internal/attendance"
	"markbook/internal/mailer"
	"markbook/internal/queue"
)

// Logs lists a session's ledger.
func (h *Handler) Logs(c *gin.Context) {
	code := c.Query("unique_code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unique_code is required"})
		return
	}
	entries, err := h.att.Logs(c.Request.Context(), code)
	if err != nil {
		writeErr(c, err)
		return
	}
	if entries == nil {
		entries = []attendance.LogEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Summary aggregates the ledger, optionally per course and/or student.
func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.att.Summary(c.Request.Context(), c.Query("course_code"), c.Query("roll_no"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// StudentReport joins the student profile with per-course attendance.
func (h *Handler) StudentReport(c *gin.Context) {
	rollNo := c.Param("roll_no")
	student, err := h.dirStore.StudentByRoll(c.Request.Context(), rollNo)
	if err != nil {
		writeErr(c, err)
		return
	}
	courses, err := h.att.StudentReport(c.Request.Context(), rollNo)
	if err != nil {
		writeErr(c, err)
		return
	}
	if courses == nil {
		courses = []attendance.CourseStat{}
	}
	c.JSON(http.StatusOK, gin.H{"student": student, "courses": courses})
}

// ExportCSV streams a session's ledger as a CSV download.
func (h *Handler) ExportCSV(c *gin.Context) {
	code := c.Query("unique_code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unique_code is required"})
		return
	}
	data, err := h.att.ExportCSV(c.Request.Context(), code)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=attendance_%s.csv", code))
	c.Data(http.StatusOK, "text/csv", data)
}

// EmailReport queues the student's attendance report for mail delivery.
func (h *Handler) EmailReport(c *gin.Context) {
	rollNo := c.Param("roll_no")
	student, err := h.dirStore.StudentByRoll(c.Request.Context(), rollNo)
	if err != nil {
		writeErr(c, err)
		return
	}
	if student.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student has no email address"})
		return
	}
	courses, err := h.att.StudentReport(c.Request.Context(), rollNo)
	if err != nil {
		writeErr(c, err)
		return
	}
	rows := make([]mailer.ReportRow, 0, len(courses))
	for _, cs := range courses {
		rows = append(rows, mailer.ReportRow{
			CourseCode: cs.CourseCode,
			Subject:    cs.Subject,
			Total:      cs.Total,
			Attended:   cs.Attended,
			Percentage: cs.Percentage,
		})
	}
	body, err := json.Marshal(mailer.StudentReportJob{
		Name:   student.Name,
		Email:  student.Email,
		RollNo: student.RollNo,
		Rows:   rows,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := h.jobs.Publish(c.Request.Context(), queue.Message{Type: queue.TypeStudentReportMail, Body: body}); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// ListActivities pages through the audit log, newest first.
func (h *Handler) ListActivities(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	entries, err := h.activities.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeErr(c, err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
