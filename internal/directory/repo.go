package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists the organisation directory in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateSchool inserts a school.
func (r *Repository) CreateSchool(ctx context.Context, s School) (School, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO school (school_name, school_dean)
		VALUES ($1, $2)
		RETURNING school_id
	`, s.Name, s.Dean)
	if err := row.Scan(&s.ID); err != nil {
		return School{}, mapWriteErr(err)
	}
	return s, nil
}

// GetSchool returns one school.
func (r *Repository) GetSchool(ctx context.Context, id int) (School, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT school_id, school_name, COALESCE(school_dean, '')
		FROM school WHERE school_id = $1
	`, id)
	var s School
	if err := row.Scan(&s.ID, &s.Name, &s.Dean); err != nil {
		return School{}, mapReadErr(err)
	}
	return s, nil
}

// ListSchools returns all schools.
func (r *Repository) ListSchools(ctx context.Context) ([]School, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT school_id, school_name, COALESCE(school_dean, '')
		FROM school ORDER BY school_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.ID, &s.Name, &s.Dean); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSchool removes a school; everything under it cascades.
func (r *Repository) DeleteSchool(ctx context.Context, id int) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM school WHERE school_id = $1`, id))
}

// CreateDepartment inserts a department.
func (r *Repository) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO department (department_name, hod, school_id)
		VALUES ($1, $2, $3)
		RETURNING department_id
	`, d.Name, d.HOD, d.SchoolID)
	if err := row.Scan(&d.ID); err != nil {
		return Department{}, mapWriteErr(err)
	}
	return d, nil
}

// ListDepartments returns departments, optionally for one school.
func (r *Repository) ListDepartments(ctx context.Context, schoolID int) ([]Department, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT department_id, department_name, COALESCE(hod, ''), school_id
		FROM department
		WHERE ($1 = 0 OR school_id = $1)
		ORDER BY department_id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.HOD, &d.SchoolID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDepartment removes a department.
func (r *Repository) DeleteDepartment(ctx context.Context, id int) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM department WHERE department_id = $1`, id))
}

// CreateClass inserts a class.
func (r *Repository) CreateClass(ctx context.Context, c Class) (Class, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO class (class_name, department_id)
		VALUES ($1, $2)
		RETURNING class_id
	`, c.Name, c.DepartmentID)
	if err := row.Scan(&c.ID); err != nil {
		return Class{}, mapWriteErr(err)
	}
	return c, nil
}

// ListClasses returns classes, optionally for one department.
func (r *Repository) ListClasses(ctx context.Context, departmentID int) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT class_id, class_name, department_id
		FROM class
		WHERE ($1 = 0 OR department_id = $1)
		ORDER BY class_id
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name, &c.DepartmentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteClass removes a class.
func (r *Repository) DeleteClass(ctx context.Context, id int) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM class WHERE class_id = $1`, id))
}

// CreateSubject inserts a subject keyed by course code.
func (r *Repository) CreateSubject(ctx context.Context, s Subject) (Subject, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subject (course_code, subject_name, school_id, semester, class_id)
		VALUES ($1, $2, $3, $4, $5)
	`, s.CourseCode, s.Name, s.SchoolID, s.Semester, s.ClassID)
	if err != nil {
		return Subject{}, mapWriteErr(err)
	}
	return s, nil
}

// ListSubjects returns subjects, optionally for one school.
func (r *Repository) ListSubjects(ctx context.Context, schoolID int) ([]Subject, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT course_code, subject_name, school_id, semester, class_id
		FROM subject
		WHERE ($1 = 0 OR school_id = $1)
		ORDER BY course_code
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.CourseCode, &s.Name, &s.SchoolID, &s.Semester, &s.ClassID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSubject removes a subject.
func (r *Repository) DeleteSubject(ctx context.Context, courseCode string) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM subject WHERE course_code = $1`, courseCode))
}

// CreateTeacher inserts a teacher profile for an existing account.
func (r *Repository) CreateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teacher_profile (user_id, school_id, teacher_name, teacher_email, phone_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING teacher_id
	`, t.UserID, t.SchoolID, t.Name, t.Email, t.Phone)
	if err := row.Scan(&t.ID); err != nil {
		return Teacher{}, mapWriteErr(err)
	}
	return t, nil
}

// TeacherByID returns one teacher profile.
func (r *Repository) TeacherByID(ctx context.Context, id int) (Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT teacher_id, user_id, school_id, teacher_name, teacher_email, COALESCE(phone_number, '')
		FROM teacher_profile WHERE teacher_id = $1
	`, id)
	return scanTeacher(row)
}

// ListTeachers returns teachers, optionally for one school.
func (r *Repository) ListTeachers(ctx context.Context, schoolID int) ([]Teacher, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT teacher_id, user_id, school_id, teacher_name, teacher_email, COALESCE(phone_number, '')
		FROM teacher_profile
		WHERE ($1 = 0 OR school_id = $1)
		ORDER BY teacher_id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Teacher
	for rows.Next() {
		var t Teacher
		if err := rows.Scan(&t.ID, &t.UserID, &t.SchoolID, &t.Name, &t.Email, &t.Phone); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTeacher updates the mutable profile fields.
func (r *Repository) UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE teacher_profile
		SET teacher_name = $2, teacher_email = $3, phone_number = $4
		WHERE teacher_id = $1
		RETURNING user_id, school_id
	`, t.ID, t.Name, t.Email, t.Phone)
	if err := row.Scan(&t.UserID, &t.SchoolID); err != nil {
		return Teacher{}, mapWriteErr(err)
	}
	return t, nil
}

// CreateStudent inserts a student profile.
func (r *Repository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO student_profile (roll_no, name, phone_number, email, semester, year, school_id, department_id, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, s.RollNo, s.Name, s.Phone, nullIfEmpty(s.Email), s.Semester, s.Year, s.SchoolID, s.DepartmentID, nullIfEmpty(s.PhotoURL))
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Student{}, mapWriteErr(err)
	}
	return s, nil
}

// StudentByRoll returns one student profile.
func (r *Repository) StudentByRoll(ctx context.Context, rollNo string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT roll_no, name, COALESCE(phone_number, ''), COALESCE(email, ''),
		       COALESCE(semester, 0), COALESCE(year, 0), school_id, department_id,
		       COALESCE(photo_url, ''), created_at
		FROM student_profile WHERE roll_no = $1
	`, rollNo)
	var s Student
	err := row.Scan(&s.RollNo, &s.Name, &s.Phone, &s.Email, &s.Semester, &s.Year,
		&s.SchoolID, &s.DepartmentID, &s.PhotoURL, &s.CreatedAt)
	if err != nil {
		return Student{}, mapReadErr(err)
	}
	return s, nil
}

// ListStudents returns students, optionally filtered by school and semester.
func (r *Repository) ListStudents(ctx context.Context, schoolID, semester int) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT roll_no, name, COALESCE(phone_number, ''), COALESCE(email, ''),
		       COALESCE(semester, 0), COALESCE(year, 0), school_id, department_id,
		       COALESCE(photo_url, ''), created_at
		FROM student_profile
		WHERE ($1 = 0 OR school_id = $1) AND ($2 = 0 OR semester = $2)
		ORDER BY roll_no
	`, schoolID, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.RollNo, &s.Name, &s.Phone, &s.Email, &s.Semester, &s.Year,
			&s.SchoolID, &s.DepartmentID, &s.PhotoURL, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStudent updates the mutable profile fields.
func (r *Repository) UpdateStudent(ctx context.Context, s Student) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE student_profile
		SET name = $2, phone_number = $3, email = $4, semester = $5, year = $6,
		    department_id = $7, photo_url = COALESCE($8, photo_url)
		WHERE roll_no = $1
		RETURNING school_id, created_at
	`, s.RollNo, s.Name, s.Phone, nullIfEmpty(s.Email), s.Semester, s.Year,
		s.DepartmentID, nullIfEmpty(s.PhotoURL))
	if err := row.Scan(&s.SchoolID, &s.CreatedAt); err != nil {
		return Student{}, mapWriteErr(err)
	}
	return s, nil
}

// DeleteStudent removes a student profile. Attendance rows survive with their
// roll number nulled by the schema.
func (r *Repository) DeleteStudent(ctx context.Context, rollNo string) error {
	return mustAffect(r.db.ExecContext(ctx, `DELETE FROM student_profile WHERE roll_no = $1`, rollNo))
}

func scanTeacher(row *sql.Row) (Teacher, error) {
	var t Teacher
	if err := row.Scan(&t.ID, &t.UserID, &t.SchoolID, &t.Name, &t.Email, &t.Phone); err != nil {
		return Teacher{}, mapReadErr(err)
	}
	return t, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapReadErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// mapWriteErr folds constraint violations into the package sentinels: unique
// collisions become ErrDuplicate, broken references mean the parent row is
// gone and map to ErrNotFound.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrNotFound
		}
	}
	return err
}
