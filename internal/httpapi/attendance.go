package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"markbook/internal/attendance"
	"markbook/internal/auth"
)

type createSessionRequest struct {
	CourseCode string     `json:"course_code" binding:"required"`
	ClassID    *int       `json:"class_id"`
	TeacherID  *int       `json:"teacher_id"`
	StartsAt   *time.Time `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at"`
}

// CreateSession opens an attendance register and returns its code.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	actorID, _ := actor(c)
	sess, err := h.att.CreateSession(c.Request.Context(), actorID, attendance.SessionInput{
		CourseCode: req.CourseCode,
		ClassID:    req.ClassID,
		TeacherID:  req.TeacherID,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// ListSessions returns the caller's registers; school and admin roles see all.
func (h *Handler) ListSessions(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	owner := uuid.Nil
	if claims.Role == auth.RoleTeacher {
		owner, _ = uuid.Parse(claims.Subject)
	}
	sessions, err := h.att.Sessions(c.Request.Context(), owner)
	if err != nil {
		writeErr(c, err)
		return
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// DeleteSession removes a register; only its owner or an admin may.
func (h *Handler) DeleteSession(c *gin.Context) {
	actorID, admin := actor(c)
	if err := h.att.DeleteSession(c.Request.Context(), c.Param("code"), actorID, admin); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SessionQR renders the session code as a PNG QR for projection.
func (h *Handler) SessionQR(c *gin.Context) {
	sess, err := h.att.Session(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeErr(c, err)
		return
	}
	png, err := qrcode.Encode(sess.Code, qrcode.Medium, 256)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type markRequest struct {
	UniqueCode string `json:"unique_code" binding:"required"`
	RollNo     string `json:"roll_no" binding:"required"`
	Photo      string `json:"photo_base64"`
}

// Mark records a student against a session code. No credentials: students
// mark from their own devices with the projected code. A photo that fails
// verification still records, flagged, with a warning in the response.
func (h *Handler) Mark(c *gin.Context) {
	var req markRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, out, err := h.att.MarkAttendance(c.Request.Context(), req.UniqueCode, req.RollNo, req.Photo)
	if err != nil {
		writeErr(c, err)
		return
	}
	resp := gin.H{"record": rec, "verification": out}
	if out.Proxy {
		resp["warning"] = "face did not match the enrolled student; attendance flagged for review"
	}
	c.JSON(http.StatusOK, resp)
}

type rejectRequest struct {
	Rejected *bool `json:"rejected"`
}

// Reject marks a ledger row rejected (or clears the flag when the body says
// rejected: false). An empty body rejects.
func (h *Handler) Reject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rejected := true
	if req.Rejected != nil {
		rejected = *req.Rejected
	}
	actorID, admin := actor(c)
	rec, err := h.att.Reject(c.Request.Context(), id, rejected, actorID, admin)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
