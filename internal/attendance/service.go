package attendance

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"markbook/internal/face"
)

// codeAttempts bounds the retries when a generated session code collides.
const codeAttempts = 5

// Ledger is the persistence surface the service drives.
type Ledger interface {
	InsertSession(ctx context.Context, s Session) (Session, error)
	SessionByCode(ctx context.Context, code string) (Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error)
	DeleteSession(ctx context.Context, code string) error
	SubjectExists(ctx context.Context, courseCode string) (bool, error)
	StudentExists(ctx context.Context, rollNo string) (bool, error)
	UpsertMark(ctx context.Context, code, rollNo string, manual, proxy bool) (Record, error)
	RecordByID(ctx context.Context, id int64) (Record, uuid.UUID, error)
	SetRejected(ctx context.Context, id int64, rejected bool) (Record, error)
	ListByCode(ctx context.Context, code string) ([]LogEntry, error)
	Summary(ctx context.Context, courseCode, rollNo string) (Summary, error)
	StudentCourseStats(ctx context.Context, rollNo string) ([]CourseStat, error)
}

// Service runs session lifecycle, attendance marking and reporting.
type Service struct {
	ledger      Ledger
	faces       face.Store
	faceTimeout time.Duration
	now         func() time.Time
}

// NewService creates the attendance service.
func NewService(ledger Ledger, faces face.Store, faceTimeout time.Duration) *Service {
	return &Service{ledger: ledger, faces: faces, faceTimeout: faceTimeout, now: time.Now}
}

// SessionInput carries the teacher-supplied fields for a new register.
type SessionInput struct {
	CourseCode string
	ClassID    *int
	TeacherID  *int
	StartsAt   *time.Time
	EndsAt     *time.Time
}

// CreateSession opens a register under a fresh short code. The database
// enforces code uniqueness; a collision retries with a new code.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, in SessionInput) (Session, error) {
	if in.StartsAt != nil && in.EndsAt != nil && !in.EndsAt.After(*in.StartsAt) {
		return Session{}, ErrInvalidWindow
	}
	ok, err := s.ledger.SubjectExists(ctx, in.CourseCode)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrSubjectNotFound
	}
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := NewSessionCode()
		if err != nil {
			return Session{}, err
		}
		sess, err := s.ledger.InsertSession(ctx, Session{
			Code:       code,
			UserID:     userID,
			CourseCode: in.CourseCode,
			ClassID:    in.ClassID,
			TeacherID:  in.TeacherID,
			StartsAt:   in.StartsAt,
			EndsAt:     in.EndsAt,
		})
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return Session{}, err
		}
		return sess, nil
	}
	return Session{}, fmt.Errorf("no unique session code after %d attempts", codeAttempts)
}

// Session returns one register by code.
func (s *Service) Session(ctx context.Context, code string) (Session, error) {
	return s.ledger.SessionByCode(ctx, code)
}

// Sessions lists registers, all of them when userID is uuid.Nil.
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return s.ledger.ListSessions(ctx, userID)
}

// DeleteSession removes a register and its ledger rows. Only the owner or an
// admin may delete.
func (s *Service) DeleteSession(ctx context.Context, code string, actor uuid.UUID, admin bool) error {
	sess, err := s.ledger.SessionByCode(ctx, code)
	if err != nil {
		return err
	}
	if !admin && sess.UserID != actor {
		return ErrNotSessionOwner
	}
	return s.ledger.DeleteSession(ctx, sess.Code)
}

// MarkAttendance records one student in one session. Marking is idempotent
// per (session, student): repeats overwrite the classification instead of
// erroring, and the newest write wins. A photo below the similarity
// threshold still marks the student, flagged as a suspected proxy.
func (s *Service) MarkAttendance(ctx context.Context, code, rollNo, photoB64 string) (Record, Outcome, error) {
	sess, err := s.ledger.SessionByCode(ctx, code)
	if err != nil {
		return Record{}, Outcome{}, err
	}
	if err := s.checkWindow(sess); err != nil {
		return Record{}, Outcome{}, err
	}
	ok, err := s.ledger.StudentExists(ctx, rollNo)
	if err != nil {
		return Record{}, Outcome{}, err
	}
	if !ok {
		return Record{}, Outcome{}, ErrStudentNotFound
	}
	photo, err := face.DecodePhoto(photoB64)
	if err != nil {
		return Record{}, Outcome{}, err
	}
	out, err := s.evaluate(ctx, rollNo, photo)
	if err != nil {
		marksTotal.WithLabelValues(outcomeError).Inc()
		return Record{}, Outcome{}, err
	}
	rec, err := s.ledger.UpsertMark(ctx, code, rollNo, out.Manual, out.Proxy)
	if err != nil {
		return Record{}, Outcome{}, err
	}
	switch {
	case out.Manual:
		marksTotal.WithLabelValues(outcomeManual).Inc()
	case out.Proxy:
		marksTotal.WithLabelValues(outcomeProxy).Inc()
	default:
		marksTotal.WithLabelValues(outcomeVerified).Inc()
	}
	return rec, out, nil
}

func (s *Service) checkWindow(sess Session) error {
	now := s.now()
	if sess.StartsAt != nil && now.Before(*sess.StartsAt) {
		return ErrSessionClosed
	}
	if sess.EndsAt != nil && now.After(*sess.EndsAt) {
		return ErrSessionClosed
	}
	return nil
}

// evaluate classifies one marking attempt. No photo means a manual mark.
// With a photo the probe embedding is compared to the enrolled reference and
// anything under ProxyThreshold is flagged as a proxy. Backend failures
// surface as errors so a broken verifier never passes for manual entry.
func (s *Service) evaluate(ctx context.Context, rollNo string, photo []byte) (Outcome, error) {
	if len(photo) == 0 {
		return Outcome{Manual: true}, nil
	}
	fctx, cancel := context.WithTimeout(ctx, s.faceTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		faceCallSeconds.Observe(time.Since(start).Seconds())
	}()
	probe, err := s.faces.Embed(fctx, photo)
	if err != nil {
		return Outcome{}, faceErr(err)
	}
	ref, err := s.faces.Lookup(fctx, rollNo)
	if err != nil {
		return Outcome{}, faceErr(err)
	}
	sim := face.Cosine(probe, ref)
	return Outcome{Proxy: sim < ProxyThreshold, Similarity: sim}, nil
}

func faceErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", face.ErrUnavailable, err)
	}
	return err
}

// Reject flips the rejection flag on a ledger row. Only the session owner or
// an admin may do so; the stored manual/proxy classification is untouched.
func (s *Service) Reject(ctx context.Context, id int64, rejected bool, actor uuid.UUID, admin bool) (Record, error) {
	_, owner, err := s.ledger.RecordByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !admin && owner != actor {
		return Record{}, ErrNotSessionOwner
	}
	return s.ledger.SetRejected(ctx, id, rejected)
}

// Logs returns a session's ledger with student names attached.
func (s *Service) Logs(ctx context.Context, code string) ([]LogEntry, error) {
	if _, err := s.ledger.SessionByCode(ctx, code); err != nil {
		return nil, err
	}
	return s.ledger.ListByCode(ctx, code)
}

// Summary aggregates ledger rows, optionally narrowed by course and student.
func (s *Service) Summary(ctx context.Context, courseCode, rollNo string) (Summary, error) {
	return s.ledger.Summary(ctx, courseCode, rollNo)
}

// StudentReport returns per-course attendance for one student, percentages
// rounded to two decimals.
func (s *Service) StudentReport(ctx context.Context, rollNo string) ([]CourseStat, error) {
	ok, err := s.ledger.StudentExists(ctx, rollNo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStudentNotFound
	}
	stats, err := s.ledger.StudentCourseStats(ctx, rollNo)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		if stats[i].Total > 0 {
			pct := float64(stats[i].Attended) / float64(stats[i].Total) * 100
			stats[i].Percentage = math.Round(pct*100) / 100
		}
		stats[i].Satisfactory = stats[i].Percentage >= SatisfactoryPercent
	}
	return stats, nil
}

// ExportCSV renders a session's ledger as CSV.
func (s *Service) ExportCSV(ctx context.Context, code string) ([]byte, error) {
	entries, err := s.Logs(ctx, code)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"unique_code", "roll_no", "student_name", "is_manual", "is_proxy", "is_rejected", "marked_at"})
	for _, e := range entries {
		var roll string
		if e.RollNo != nil {
			roll = *e.RollNo
		}
		w.Write([]string{
			e.Code,
			roll,
			e.StudentName,
			strconv.FormatBool(e.IsManual),
			strconv.FormatBool(e.IsProxy),
			strconv.FormatBool(e.IsRejected),
			e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
