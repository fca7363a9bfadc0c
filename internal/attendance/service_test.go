package attendance

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markbook/internal/face"
)

type fakeLedger struct {
	sessions   map[string]Session
	records    map[string]Record
	names      map[string]string
	students   map[string]bool
	subjects   map[string]bool
	stats      []CourseStat
	insertErrs []error
	inserts    int
	nextID     int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		sessions: map[string]Session{},
		records:  map[string]Record{},
		names:    map[string]string{},
		students: map[string]bool{},
		subjects: map[string]bool{},
	}
}

func (f *fakeLedger) InsertSession(_ context.Context, s Session) (Session, error) {
	f.inserts++
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return Session{}, err
		}
	}
	s.CreatedAt = time.Now()
	f.sessions[s.Code] = s
	return s, nil
}

func (f *fakeLedger) SessionByCode(_ context.Context, code string) (Session, error) {
	s, ok := f.sessions[code]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeLedger) ListSessions(_ context.Context, userID uuid.UUID) ([]Session, error) {
	var out []Session
	for _, s := range f.sessions {
		if userID == uuid.Nil || s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeleteSession(_ context.Context, code string) error {
	if _, ok := f.sessions[code]; !ok {
		return ErrSessionNotFound
	}
	delete(f.sessions, code)
	return nil
}

func (f *fakeLedger) SubjectExists(_ context.Context, courseCode string) (bool, error) {
	return f.subjects[courseCode], nil
}

func (f *fakeLedger) StudentExists(_ context.Context, rollNo string) (bool, error) {
	return f.students[rollNo], nil
}

func (f *fakeLedger) UpsertMark(_ context.Context, code, rollNo string, manual, proxy bool) (Record, error) {
	if _, ok := f.sessions[code]; !ok {
		return Record{}, ErrSessionNotFound
	}
	if !f.students[rollNo] {
		return Record{}, ErrStudentNotFound
	}
	key := code + "|" + rollNo
	rec, ok := f.records[key]
	if !ok {
		f.nextID++
		roll := rollNo
		rec = Record{ID: f.nextID, Code: code, RollNo: &roll, CreatedAt: time.Now()}
	}
	rec.IsManual = manual
	rec.IsProxy = proxy
	rec.IsRejected = false
	rec.UpdatedAt = time.Now()
	f.records[key] = rec
	return rec, nil
}

func (f *fakeLedger) RecordByID(_ context.Context, id int64) (Record, uuid.UUID, error) {
	for _, rec := range f.records {
		if rec.ID == id {
			return rec, f.sessions[rec.Code].UserID, nil
		}
	}
	return Record{}, uuid.Nil, ErrRecordNotFound
}

func (f *fakeLedger) SetRejected(_ context.Context, id int64, rejected bool) (Record, error) {
	for key, rec := range f.records {
		if rec.ID == id {
			rec.IsRejected = rejected
			rec.UpdatedAt = time.Now()
			f.records[key] = rec
			return rec, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func (f *fakeLedger) ListByCode(_ context.Context, code string) ([]LogEntry, error) {
	var out []LogEntry
	for _, rec := range f.records {
		if rec.Code != code {
			continue
		}
		e := LogEntry{Record: rec}
		if rec.RollNo != nil {
			e.StudentName = f.names[*rec.RollNo]
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeLedger) Summary(_ context.Context, courseCode, rollNo string) (Summary, error) {
	var s Summary
	for _, rec := range f.records {
		if courseCode != "" && f.sessions[rec.Code].CourseCode != courseCode {
			continue
		}
		if rollNo != "" && (rec.RollNo == nil || *rec.RollNo != rollNo) {
			continue
		}
		s.Total++
		if rec.IsManual {
			s.Manual++
		} else {
			s.Photo++
		}
		if rec.IsProxy {
			s.Proxy++
		}
		if rec.IsRejected {
			s.Rejected++
		}
	}
	return s, nil
}

func (f *fakeLedger) StudentCourseStats(_ context.Context, _ string) ([]CourseStat, error) {
	return f.stats, nil
}

type fakeFaces struct {
	probe     face.Vector
	gallery   map[string]face.Vector
	embedErr  error
	lookupErr error
	embeds    int
}

func (f *fakeFaces) Enroll(_ context.Context, rollNo string, _ []byte) error {
	if f.gallery == nil {
		f.gallery = map[string]face.Vector{}
	}
	f.gallery[rollNo] = f.probe
	return nil
}

func (f *fakeFaces) Embed(context.Context, []byte) (face.Vector, error) {
	f.embeds++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.probe, nil
}

func (f *fakeFaces) Lookup(_ context.Context, rollNo string) (face.Vector, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	ref, ok := f.gallery[rollNo]
	if !ok {
		return nil, face.ErrNotEnrolled
	}
	return ref, nil
}

func (f *fakeFaces) Delete(_ context.Context, rollNo string) error {
	delete(f.gallery, rollNo)
	return nil
}

// photoPNG is a payload DecodePhoto accepts without a real decoder behind it.
func photoPNG(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3})
}

func seedSession(t *testing.T, ledger *fakeLedger, code string, owner uuid.UUID) {
	t.Helper()
	ledger.subjects["CS101"] = true
	ledger.sessions[code] = Session{Code: code, UserID: owner, CourseCode: "CS101", CreatedAt: time.Now()}
}

func TestCreateSessionRetriesOnCodeCollision(t *testing.T) {
	ledger := newFakeLedger()
	ledger.subjects["CS101"] = true
	ledger.insertErrs = []error{errCodeTaken, errCodeTaken}
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	sess, err := svc.CreateSession(context.Background(), uuid.New(), SessionInput{CourseCode: "CS101"})
	require.NoError(t, err)
	assert.Len(t, sess.Code, 8)
	assert.Equal(t, 3, ledger.inserts)
}

func TestCreateSessionGivesUpAfterRepeatedCollisions(t *testing.T) {
	ledger := newFakeLedger()
	ledger.subjects["CS101"] = true
	ledger.insertErrs = []error{errCodeTaken, errCodeTaken, errCodeTaken, errCodeTaken, errCodeTaken}
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	_, err := svc.CreateSession(context.Background(), uuid.New(), SessionInput{CourseCode: "CS101"})
	require.Error(t, err)
	assert.Equal(t, codeAttempts, ledger.inserts)
}

func TestCreateSessionUnknownSubject(t *testing.T) {
	svc := NewService(newFakeLedger(), &fakeFaces{}, time.Second)
	_, err := svc.CreateSession(context.Background(), uuid.New(), SessionInput{CourseCode: "NOPE"})
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestCreateSessionRejectsInvertedWindow(t *testing.T) {
	ledger := newFakeLedger()
	ledger.subjects["CS101"] = true
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := svc.CreateSession(context.Background(), uuid.New(), SessionInput{
		CourseCode: "CS101", StartsAt: &start, EndsAt: &end,
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Zero(t, ledger.inserts)
}

func TestMarkAttendanceManualWithoutPhoto(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	faces := &fakeFaces{}
	svc := NewService(ledger, faces, time.Second)

	rec, out, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	require.NoError(t, err)
	assert.True(t, out.Manual)
	assert.False(t, out.Proxy)
	assert.True(t, rec.IsManual)
	assert.Zero(t, faces.embeds, "no photo should mean no embedding call")
}

func TestMarkAttendanceVerifiedAtThreshold(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	// cosine is exactly 340/400 = 0.85, the inclusive boundary
	faces := &fakeFaces{
		probe:   face.Vector{20, 0, 0, 0, 0},
		gallery: map[string]face.Vector{"S1": {17, 1, 1, 3, 10}},
	}
	svc := NewService(ledger, faces, time.Second)

	rec, out, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", photoPNG(t))
	require.NoError(t, err)
	assert.False(t, out.Manual)
	assert.False(t, out.Proxy, "similarity equal to the threshold must verify")
	assert.InDelta(t, 0.85, out.Similarity, 1e-9)
	assert.False(t, rec.IsProxy)
	assert.False(t, rec.IsManual)
}

func TestMarkAttendanceFlagsProxyBelowThreshold(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	faces := &fakeFaces{
		probe:   face.Vector{1, 0},
		gallery: map[string]face.Vector{"S1": {0, 1}},
	}
	svc := NewService(ledger, faces, time.Second)

	rec, out, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", photoPNG(t))
	require.NoError(t, err, "a failed match is a flagged record, not an error")
	assert.True(t, out.Proxy)
	assert.True(t, rec.IsProxy)
	assert.False(t, rec.IsManual)
}

func TestMarkAttendanceRemarkOverwrites(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	faces := &fakeFaces{
		probe:   face.Vector{1, 0},
		gallery: map[string]face.Vector{"S1": {1, 0}},
	}
	svc := NewService(ledger, faces, time.Second)

	first, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	require.NoError(t, err)
	require.True(t, first.IsManual)

	_, err = ledger.SetRejected(context.Background(), first.ID, true)
	require.NoError(t, err)

	second, out, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", photoPNG(t))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "re-marking must reuse the single row")
	assert.False(t, second.IsManual)
	assert.False(t, second.IsRejected, "re-marking clears a rejection")
	assert.False(t, out.Proxy)
	assert.Len(t, ledger.records, 1)
}

func TestMarkAttendanceUnknownSession(t *testing.T) {
	ledger := newFakeLedger()
	ledger.students["S1"] = true
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "ZZZZ9999", "S1", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMarkAttendanceUnknownStudent(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S9", "")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestMarkAttendanceOutsideWindow(t *testing.T) {
	ledger := newFakeLedger()
	owner := uuid.New()
	seedSession(t, ledger, "AAAA2222", owner)
	ledger.students["S1"] = true

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	starts := base.Add(10 * time.Minute)
	ends := base.Add(20 * time.Minute)
	sess := ledger.sessions["AAAA2222"]
	sess.StartsAt = &starts
	sess.EndsAt = &ends
	ledger.sessions["AAAA2222"] = sess

	svc := NewService(ledger, &fakeFaces{}, time.Second)

	svc.now = func() time.Time { return base }
	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	assert.ErrorIs(t, err, ErrSessionClosed, "before the window opens")

	svc.now = func() time.Time { return base.Add(15 * time.Minute) }
	_, _, err = svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	assert.NoError(t, err, "inside the window")

	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, _, err = svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	assert.ErrorIs(t, err, ErrSessionClosed, "after the window closes")
}

func TestMarkAttendanceInvalidPhoto(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "!!! not base64 !!!")
	assert.ErrorIs(t, err, face.ErrInvalidImage)
	assert.Empty(t, ledger.records)
}

func TestMarkAttendanceUnavailableIsNotDowngraded(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	faces := &fakeFaces{embedErr: face.ErrUnavailable}
	svc := NewService(ledger, faces, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", photoPNG(t))
	assert.ErrorIs(t, err, face.ErrUnavailable)
	assert.Empty(t, ledger.records, "a broken verifier must not record anything")
}

func TestMarkAttendanceTimeoutSurfacesAsUnavailable(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	faces := &fakeFaces{embedErr: context.DeadlineExceeded}
	svc := NewService(ledger, faces, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", photoPNG(t))
	assert.ErrorIs(t, err, face.ErrUnavailable)
}

func TestMarkAttendanceNotEnrolled(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	faces := &fakeFaces{probe: face.Vector{1, 0}}
	svc := NewService(ledger, faces, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", photoPNG(t))
	assert.ErrorIs(t, err, face.ErrNotEnrolled)
}

func TestRejectRequiresOwnershipOrAdmin(t *testing.T) {
	ledger := newFakeLedger()
	owner := uuid.New()
	seedSession(t, ledger, "AAAA2222", owner)
	ledger.students["S1"] = true
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	rec, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), rec.ID, true, uuid.New(), false)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	got, err := svc.Reject(context.Background(), rec.ID, true, owner, false)
	require.NoError(t, err)
	assert.True(t, got.IsRejected)

	got, err = svc.Reject(context.Background(), rec.ID, false, uuid.New(), true)
	require.NoError(t, err)
	assert.False(t, got.IsRejected, "an admin may act on any session")
}

func TestRejectUnknownRecord(t *testing.T) {
	svc := NewService(newFakeLedger(), &fakeFaces{}, time.Second)
	_, err := svc.Reject(context.Background(), 42, true, uuid.New(), true)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteSessionOwnership(t *testing.T) {
	ledger := newFakeLedger()
	owner := uuid.New()
	seedSession(t, ledger, "AAAA2222", owner)
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	err := svc.DeleteSession(context.Background(), "AAAA2222", uuid.New(), false)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	err = svc.DeleteSession(context.Background(), "AAAA2222", owner, false)
	assert.NoError(t, err)
	assert.Empty(t, ledger.sessions)
}

func TestLogsUnknownSession(t *testing.T) {
	svc := NewService(newFakeLedger(), &fakeFaces{}, time.Second)
	_, err := svc.Logs(context.Background(), "ZZZZ9999")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStudentReportPercentages(t *testing.T) {
	ledger := newFakeLedger()
	ledger.students["S1"] = true
	ledger.stats = []CourseStat{
		{CourseCode: "CS101", Subject: "Algorithms", Total: 4, Attended: 3},
		{CourseCode: "CS102", Subject: "Networks", Total: 3, Attended: 1},
	}
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	stats, err := svc.StudentReport(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 75.0, stats[0].Percentage)
	assert.True(t, stats[0].Satisfactory)
	assert.Equal(t, 33.33, stats[1].Percentage)
	assert.False(t, stats[1].Satisfactory)
}

func TestStudentReportUnknownStudent(t *testing.T) {
	svc := NewService(newFakeLedger(), &fakeFaces{}, time.Second)
	_, err := svc.StudentReport(context.Background(), "S9")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestExportCSV(t *testing.T) {
	ledger := newFakeLedger()
	seedSession(t, ledger, "AAAA2222", uuid.New())
	ledger.students["S1"] = true
	ledger.names["S1"] = "Asha Rao"
	svc := NewService(ledger, &fakeFaces{}, time.Second)

	_, _, err := svc.MarkAttendance(context.Background(), "AAAA2222", "S1", "")
	require.NoError(t, err)

	out, err := svc.ExportCSV(context.Background(), "AAAA2222")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"unique_code", "roll_no", "student_name", "is_manual", "is_proxy", "is_rejected", "marked_at"}, rows[0])
	assert.Equal(t, "AAAA2222", rows[1][0])
	assert.Equal(t, "S1", rows[1][1])
	assert.Equal(t, "Asha Rao", rows[1][2])
	assert.Equal(t, "true", rows[1][3])
}
