package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"markbook/internal/activity"
	"markbook/internal/attendance"
	"markbook/internal/auth"
	"markbook/internal/directory"
	"markbook/internal/face"
	"markbook/internal/queue"
)

// AuthService is the account surface the API exposes.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (auth.User, error)
	Login(ctx context.Context, email, password string) (auth.User, auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Me(ctx context.Context, subject string) (auth.User, error)
}

// DirectoryService covers the orchestrated teacher and student flows.
type DirectoryService interface {
	AddTeacher(ctx context.Context, actor uuid.UUID, schoolID int, name, email, phone string) (directory.Teacher, error)
	UpdateTeacher(ctx context.Context, actor uuid.UUID, t directory.Teacher) (directory.Teacher, error)
	RemoveTeacher(ctx context.Context, actor uuid.UUID, teacherID int) error
	EnrollStudent(ctx context.Context, actor uuid.UUID, st directory.Student, photoB64 string) (directory.Student, error)
	UpdateStudent(ctx context.Context, actor uuid.UUID, st directory.Student, photoB64 string) (directory.Student, error)
	RemoveStudent(ctx context.Context, actor uuid.UUID, rollNo string) error
}

// DirectoryStore covers the plain CRUD reads and writes.
type DirectoryStore interface {
	CreateSchool(ctx context.Context, s directory.School) (directory.School, error)
	GetSchool(ctx context.Context, id int) (directory.School, error)
	ListSchools(ctx context.Context) ([]directory.School, error)
	DeleteSchool(ctx context.Context, id int) error
	CreateDepartment(ctx context.Context, d directory.Department) (directory.Department, error)
	ListDepartments(ctx context.Context, schoolID int) ([]directory.Department, error)
	DeleteDepartment(ctx context.Context, id int) error
	CreateClass(ctx context.Context, c directory.Class) (directory.Class, error)
	ListClasses(ctx context.Context, departmentID int) ([]directory.Class, error)
	DeleteClass(ctx context.Context, id int) error
	CreateSubject(ctx context.Context, s directory.Subject) (directory.Subject, error)
	ListSubjects(ctx context.Context, schoolID int) ([]directory.Subject, error)
	DeleteSubject(ctx context.Context, courseCode string) error
	ListTeachers(ctx context.Context, schoolID int) ([]directory.Teacher, error)
	StudentByRoll(ctx context.Context, rollNo string) (directory.Student, error)
	ListStudents(ctx context.Context, schoolID, semester int) ([]directory.Student, error)
}

// AttendanceService is the session and ledger surface.
type AttendanceService interface {
	CreateSession(ctx context.Context, userID uuid.UUID, in attendance.SessionInput) (attendance.Session, error)
	Session(ctx context.Context, code string) (attendance.Session, error)
	Sessions(ctx context.Context, userID uuid.UUID) ([]attendance.Session, error)
	DeleteSession(ctx context.Context, code string, actor uuid.UUID, admin bool) error
	MarkAttendance(ctx context.Context, code, rollNo, photoB64 string) (attendance.Record, attendance.Outcome, error)
	Reject(ctx context.Context, id int64, rejected bool, actor uuid.UUID, admin bool) (attendance.Record, error)
	Logs(ctx context.Context, code string) ([]attendance.LogEntry, error)
	Summary(ctx context.Context, courseCode, rollNo string) (attendance.Summary, error)
	StudentReport(ctx context.Context, rollNo string) ([]attendance.CourseStat, error)
	ExportCSV(ctx context.Context, code string) ([]byte, error)
}

// Activities lists the audit log.
type Activities interface {
	List(ctx context.Context, limit, offset int) ([]activity.Entry, error)
}

// Handler serves the REST API.
type Handler struct {
	auth       AuthService
	dir        DirectoryService
	dirStore   DirectoryStore
	att        AttendanceService
	activities Activities
	jobs       queue.Queue
}

// New creates a handler over the given services.
func New(authSvc AuthService, dir DirectoryService, dirStore DirectoryStore, att AttendanceService, activities Activities, jobs queue.Queue) *Handler {
	return &Handler{
		auth:       authSvc,
		dir:        dir,
		dirStore:   dirStore,
		att:        att,
		activities: activities,
		jobs:       jobs,
	}
}

// writeErr maps service errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a 500 without leaking internals.
func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrTokenRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotSessionOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSessionNotFound),
		errors.Is(err, attendance.ErrStudentNotFound),
		errors.Is(err, attendance.ErrSubjectNotFound),
		errors.Is(err, attendance.ErrRecordNotFound),
		errors.Is(err, face.ErrNotEnrolled),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, directory.ErrDuplicate),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, attendance.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, face.ErrNoFaceDetected), errors.Is(err, face.ErrInvalidImage):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, face.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("httpapi: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindJSON binds and validates the request body. Validation failures answer
// with a field to failed-rule map.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// intParam parses a numeric path parameter.
func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// actor returns the authenticated user id and whether it holds the admin role.
func actor(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, claims.Role == auth.RoleAdmin
}
