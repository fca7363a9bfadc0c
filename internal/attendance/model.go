package attendance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProxyThreshold is the cosine similarity a probe embedding must reach,
// inclusive, to count as the enrolled student. Below it the record is kept
// but flagged as a suspected proxy.
const ProxyThreshold = 0.85

// SatisfactoryPercent is the attendance percentage regarded as sufficient.
const SatisfactoryPercent = 75.0

var (
	// ErrSessionNotFound means the session code does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStudentNotFound means the roll number does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrSubjectNotFound means the course code does not exist.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrRecordNotFound means the attendance row does not exist.
	ErrRecordNotFound = errors.New("attendance record not found")
	// ErrSessionClosed means marking happened outside the session window.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotSessionOwner means the acting user does not own the session.
	ErrNotSessionOwner = errors.New("not session owner")
	// ErrInvalidWindow means ends_at is not after starts_at.
	ErrInvalidWindow = errors.New("session window ends before it starts")
)

// Session is one attendance register opened by a teacher. StartsAt/EndsAt
// bound when marking is accepted; nil means unbounded on that side.
type Session struct {
	Code       string     `json:"unique_code"`
	UserID     uuid.UUID  `json:"user_id"`
	CourseCode string     `json:"course_code"`
	ClassID    *int       `json:"class_id,omitempty"`
	TeacherID  *int       `json:"teacher_id,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Record is the single ledger row for a (session, student) pair. RollNo is a
// pointer because deleting a student nulls it while the row survives.
type Record struct {
	ID         int64     `json:"attendance_id"`
	Code       string    `json:"unique_code"`
	RollNo     *string   `json:"roll_no"`
	IsManual   bool      `json:"is_manual"`
	IsRejected bool      `json:"is_rejected"`
	IsProxy    bool      `json:"is_proxy"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LogEntry is a ledger row joined with the student profile for display.
type LogEntry struct {
	Record
	StudentName string `json:"student_name,omitempty"`
}

// Outcome is the verification engine's classification of one marking attempt.
// A proxy-flagged outcome is a valid result, not an error.
type Outcome struct {
	Manual     bool    `json:"manual"`
	Proxy      bool    `json:"proxy"`
	Similarity float64 `json:"similarity"`
}

// Summary is the aggregate view over ledger rows.
type Summary struct {
	Total    int `json:"total"`
	Manual   int `json:"manual"`
	Photo    int `json:"photo"`
	Proxy    int `json:"proxy"`
	Rejected int `json:"rejected"`
}

// CourseStat is one course line of a student report. Attended counts records
// that are present and not rejected.
type CourseStat struct {
	CourseCode   string  `json:"course_code"`
	Subject      string  `json:"subject_name"`
	Total        int     `json:"total_sessions"`
	Attended     int     `json:"attended"`
	Percentage   float64 `json:"percentage"`
	Satisfactory bool    `json:"satisfactory"`
}
