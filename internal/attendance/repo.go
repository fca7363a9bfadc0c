package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// errCodeTaken signals a session code collision; the caller regenerates.
var errCodeTaken = errors.New("session code taken")

// Repository persists sessions and the attendance ledger in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertSession writes a new register under a fresh code. A code collision
// returns errCodeTaken; a missing subject/class reference maps to
// ErrSubjectNotFound.
func (r *Repository) InsertSession(ctx context.Context, s Session) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_register (unique_code, user_id, course_code, class_id, teacher_id, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, s.Code, s.UserID, s.CourseCode, s.ClassID, s.TeacherID, s.StartsAt, s.EndsAt)
	if err := row.Scan(&s.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return Session{}, errCodeTaken
			case "23503":
				return Session{}, ErrSubjectNotFound
			}
		}
		return Session{}, err
	}
	return s, nil
}

// SessionByCode returns one register.
func (r *Repository) SessionByCode(ctx context.Context, code string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT unique_code, user_id, course_code, class_id, teacher_id, starts_at, ends_at, created_at
		FROM attendance_register WHERE unique_code = $1
	`, code)
	var s Session
	if err := row.Scan(&s.Code, &s.UserID, &s.CourseCode, &s.ClassID, &s.TeacherID, &s.StartsAt, &s.EndsAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// ListSessions returns registers, newest first, optionally for one owner.
func (r *Repository) ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT unique_code, user_id, course_code, class_id, teacher_id, starts_at, ends_at, created_at
		FROM attendance_register
		WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR user_id = $1)
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Code, &s.UserID, &s.CourseCode, &s.ClassID, &s.TeacherID, &s.StartsAt, &s.EndsAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a register and its ledger rows.
func (r *Repository) DeleteSession(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_register WHERE unique_code = $1`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SubjectExists reports whether a course code is registered.
func (r *Repository) SubjectExists(ctx context.Context, courseCode string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subject WHERE course_code = $1)`, courseCode).Scan(&exists)
	return exists, err
}

// StudentExists reports whether a roll number is registered.
func (r *Repository) StudentExists(ctx context.Context, rollNo string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM student_profile WHERE roll_no = $1)`, rollNo).Scan(&exists)
	return exists, err
}

// UpsertMark writes the single ledger row for (code, rollNo). A first mark
// inserts with is_rejected false; a re-mark overwrites the classification,
// clears any rejection and refreshes updated_at. The unique constraint is
// the only synchronisation point, so concurrent markers race safely and the
// last write wins. Foreign key failures map back to the missing entity to
// cover rows deleted between validation and write.
func (r *Repository) UpsertMark(ctx context.Context, code, rollNo string, manual, proxy bool) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_logs (unique_code, roll_no, is_manual, is_proxy)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (unique_code, roll_no) DO UPDATE SET
			is_manual = EXCLUDED.is_manual,
			is_proxy = EXCLUDED.is_proxy,
			is_rejected = FALSE,
			updated_at = NOW()
		RETURNING attendance_id, unique_code, roll_no, is_manual, is_rejected, is_proxy, created_at, updated_at
	`, code, rollNo, manual, proxy)
	rec, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			if strings.Contains(pgErr.ConstraintName, "roll_no") {
				return Record{}, ErrStudentNotFound
			}
			return Record{}, ErrSessionNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// RecordByID returns a ledger row and the user owning its session.
func (r *Repository) RecordByID(ctx context.Context, id int64) (Record, uuid.UUID, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT al.attendance_id, al.unique_code, al.roll_no, al.is_manual, al.is_rejected, al.is_proxy,
		       al.created_at, al.updated_at, ar.user_id
		FROM attendance_logs al
		JOIN attendance_register ar ON ar.unique_code = al.unique_code
		WHERE al.attendance_id = $1
	`, id)
	var rec Record
	var owner uuid.UUID
	err := row.Scan(&rec.ID, &rec.Code, &rec.RollNo, &rec.IsManual, &rec.IsRejected, &rec.IsProxy,
		&rec.CreatedAt, &rec.UpdatedAt, &owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, uuid.Nil, ErrRecordNotFound
		}
		return Record{}, uuid.Nil, err
	}
	return rec, owner, nil
}

// SetRejected flips only the rejection flag and updated_at; the manual and
// proxy flags keep whatever the marking wrote.
func (r *Repository) SetRejected(ctx context.Context, id int64, rejected bool) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_logs
		SET is_rejected = $2, updated_at = NOW()
		WHERE attendance_id = $1
		RETURNING attendance_id, unique_code, roll_no, is_manual, is_rejected, is_proxy, created_at, updated_at
	`, id, rejected)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ListByCode returns a session's ledger joined with student names.
func (r *Repository) ListByCode(ctx context.Context, code string) ([]LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT al.attendance_id, al.unique_code, al.roll_no, al.is_manual, al.is_rejected, al.is_proxy,
		       al.created_at, al.updated_at, COALESCE(sp.name, '')
		FROM attendance_logs al
		LEFT JOIN student_profile sp ON sp.roll_no = al.roll_no
		WHERE al.unique_code = $1
		ORDER BY al.created_at
	`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Code, &e.RollNo, &e.IsManual, &e.IsRejected, &e.IsProxy,
			&e.CreatedAt, &e.UpdatedAt, &e.StudentName); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary aggregates ledger rows, optionally narrowed by course and/or roll.
func (r *Repository) Summary(ctx context.Context, courseCode, rollNo string) (Summary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE al.is_manual),
		       COUNT(*) FILTER (WHERE NOT al.is_manual),
		       COUNT(*) FILTER (WHERE al.is_proxy),
		       COUNT(*) FILTER (WHERE al.is_rejected)
		FROM attendance_logs al
		JOIN attendance_register ar ON ar.unique_code = al.unique_code
		WHERE ($1 = '' OR ar.course_code = $1)
		  AND ($2 = '' OR al.roll_no = $2)
	`, courseCode, rollNo)
	var s Summary
	if err := row.Scan(&s.Total, &s.Manual, &s.Photo, &s.Proxy, &s.Rejected); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// StudentCourseStats returns, per course with at least one session, the
// session count and how many this student attended (present and not
// rejected). Percentages are computed by the caller.
func (r *Repository) StudentCourseStats(ctx context.Context, rollNo string) ([]CourseStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ar.course_code, s.subject_name,
		       COUNT(DISTINCT ar.unique_code),
		       COUNT(DISTINCT al.unique_code)
		FROM attendance_register ar
		JOIN subject s ON s.course_code = ar.course_code
		LEFT JOIN attendance_logs al
		       ON al.unique_code = ar.unique_code
		      AND al.roll_no = $1
		      AND NOT al.is_rejected
		GROUP BY ar.course_code, s.subject_name
		ORDER BY ar.course_code
	`, rollNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CourseStat
	for rows.Next() {
		var cs CourseStat
		if err := rows.Scan(&cs.CourseCode, &cs.Subject, &cs.Total, &cs.Attended); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func scanRecord(row *sql.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Code, &rec.RollNo, &rec.IsManual, &rec.IsRejected, &rec.IsProxy,
		&rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}
