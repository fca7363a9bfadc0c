package store

import "context"

// Bootstrap creates the schema when it does not exist yet. Statements run in
// dependency order; each is idempotent so restarts are safe.
func (d *DB) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role SMALLINT NOT NULL CHECK (role IN (1, 2, 3)),
			name TEXT,
			phone_number TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS school (
			school_id SERIAL PRIMARY KEY,
			school_name TEXT NOT NULL UNIQUE,
			school_dean TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS department (
			department_id SERIAL PRIMARY KEY,
			department_name TEXT NOT NULL,
			hod TEXT,
			school_id INT NOT NULL REFERENCES school(school_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS class (
			class_id SERIAL PRIMARY KEY,
			class_name TEXT NOT NULL,
			department_id INT NOT NULL REFERENCES department(department_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS subject (
			course_code VARCHAR(20) PRIMARY KEY,
			subject_name TEXT NOT NULL,
			school_id INT NOT NULL REFERENCES school(school_id) ON DELETE CASCADE,
			semester INT NOT NULL CHECK (semester BETWEEN 1 AND 8),
			class_id INT REFERENCES class(class_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS student_profile (
			roll_no VARCHAR(50) PRIMARY KEY,
			name TEXT NOT NULL,
			phone_number TEXT,
			email TEXT UNIQUE,
			semester INT CHECK (semester BETWEEN 1 AND 8),
			year INT,
			school_id INT NOT NULL REFERENCES school(school_id) ON DELETE CASCADE,
			department_id INT REFERENCES department(department_id) ON DELETE CASCADE,
			photo_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS teacher_profile (
			teacher_id SERIAL PRIMARY KEY,
			user_id UUID NOT NULL UNIQUE REFERENCES users(user_id) ON DELETE CASCADE,
			school_id INT NOT NULL REFERENCES school(school_id) ON DELETE CASCADE,
			teacher_name TEXT NOT NULL,
			teacher_email TEXT NOT NULL UNIQUE,
			phone_number TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_register (
			unique_code VARCHAR(10) PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			course_code VARCHAR(20) NOT NULL REFERENCES subject(course_code) ON DELETE CASCADE,
			class_id INT REFERENCES class(class_id) ON DELETE CASCADE,
			teacher_id INT REFERENCES teacher_profile(teacher_id) ON DELETE CASCADE,
			starts_at TIMESTAMPTZ,
			ends_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_logs (
			attendance_id BIGSERIAL PRIMARY KEY,
			unique_code VARCHAR(10) NOT NULL REFERENCES attendance_register(unique_code) ON DELETE CASCADE,
			roll_no VARCHAR(50) REFERENCES student_profile(roll_no) ON DELETE SET NULL,
			is_manual BOOLEAN NOT NULL DEFAULT FALSE,
			is_rejected BOOLEAN NOT NULL DEFAULT FALSE,
			is_proxy BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (unique_code, roll_no)
		)`,
		`CREATE TABLE IF NOT EXISTS school_activity (
			activity_id BIGSERIAL PRIMARY KEY,
			activity_name TEXT NOT NULL CHECK (activity_name IN (
				'add_student', 'add_teacher', 'remove_teacher',
				'remove_student', 'update_teacher', 'update_student')),
			user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			roll_no VARCHAR(50) REFERENCES student_profile(roll_no) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_logs_roll_no ON attendance_logs(roll_no)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_register_user ON attendance_register(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
