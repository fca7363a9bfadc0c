package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the recorded directory actions. The set matches the
// school_activity table constraint.
type Kind string

const (
	KindAddStudent    Kind = "add_student"
	KindAddTeacher    Kind = "add_teacher"
	KindRemoveTeacher Kind = "remove_teacher"
	KindRemoveStudent Kind = "remove_student"
	KindUpdateTeacher Kind = "update_teacher"
	KindUpdateStudent Kind = "update_student"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAddStudent, KindAddTeacher, KindRemoveTeacher,
		KindRemoveStudent, KindUpdateTeacher, KindUpdateStudent:
		return true
	}
	return false
}

// Entry is one audit row. RollNo is nil for teacher actions and becomes nil
// again when the referenced student is deleted.
type Entry struct {
	ID        int64     `json:"activity_id"`
	Kind      Kind      `json:"activity_name"`
	UserID    uuid.UUID `json:"user_id"`
	RollNo    *string   `json:"roll_no,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists the audit log.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record appends one entry.
func (r *Repository) Record(ctx context.Context, kind Kind, userID uuid.UUID, rollNo *string) error {
	if !kind.Valid() {
		return fmt.Errorf("activity: unknown kind %q", kind)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO school_activity (activity_name, user_id, roll_no)
		VALUES ($1, $2, $3)
	`, kind, userID, rollNo)
	return err
}

// List returns recent entries, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id, activity_name, user_id, roll_no, created_at, updated_at
		FROM school_activity
		ORDER BY created_at DESC, activity_id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.UserID, &e.RollNo, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
