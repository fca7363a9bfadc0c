package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a directory entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique column is violated.
	ErrDuplicate = errors.New("already exists")
)

// School is the top-level organisation.
type School struct {
	ID   int    `json:"school_id"`
	Name string `json:"school_name"`
	Dean string `json:"school_dean,omitempty"`
}

// Department belongs to a school.
type Department struct {
	ID       int    `json:"department_id"`
	Name     string `json:"department_name"`
	HOD      string `json:"hod,omitempty"`
	SchoolID int    `json:"school_id"`
}

// Class belongs to a department.
type Class struct {
	ID           int    `json:"class_id"`
	Name         string `json:"class_name"`
	DepartmentID int    `json:"department_id"`
}

// Subject is identified by its course code.
type Subject struct {
	CourseCode string `json:"course_code"`
	Name       string `json:"subject_name"`
	SchoolID   int    `json:"school_id"`
	Semester   int    `json:"semester"`
	ClassID    *int   `json:"class_id,omitempty"`
}

// Teacher is the profile attached to a teacher-role account.
type Teacher struct {
	ID       int       `json:"teacher_id"`
	UserID   uuid.UUID `json:"user_id"`
	SchoolID int       `json:"school_id"`
	Name     string    `json:"teacher_name"`
	Email    string    `json:"teacher_email"`
	Phone    string    `json:"phone_number,omitempty"`
}

// Student is identified by roll number.
type Student struct {
	RollNo       string    `json:"roll_no"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone_number,omitempty"`
	Email        string    `json:"email,omitempty"`
	Semester     int       `json:"semester,omitempty"`
	Year         int       `json:"year,omitempty"`
	SchoolID     int       `json:"school_id"`
	DepartmentID *int      `json:"department_id,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
