package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"markbook/internal/activity"
	"markbook/internal/auth"
	"markbook/internal/cloudinary"
	"markbook/internal/face"
	"markbook/internal/mailer"
	"markbook/internal/queue"
)

// Store is the slice of the repository the orchestrated flows need.
type Store interface {
	GetSchool(ctx context.Context, id int) (School, error)
	CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
	TeacherByID(ctx context.Context, id int) (Teacher, error)
	UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
	CreateStudent(ctx context.Context, s Student) (Student, error)
	StudentByRoll(ctx context.Context, rollNo string) (Student, error)
	UpdateStudent(ctx context.Context, s Student) (Student, error)
	DeleteStudent(ctx context.Context, rollNo string) error
}

// Accounts creates and removes login accounts for teachers.
type Accounts interface {
	CreateAccount(ctx context.Context, email, password, name, phone string, role auth.Role) (auth.User, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

// Archive stores enrollment photos with a hosting provider.
type Archive interface {
	Enabled() bool
	UploadBytes(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// Auditor appends to the activity log.
type Auditor interface {
	Record(ctx context.Context, kind activity.Kind, userID uuid.UUID, rollNo *string) error
}

// Publisher hands jobs to the mail worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service orchestrates the teacher and student lifecycles: account
// provisioning, face enrollment, photo archiving, audit entries and
// credential mail.
type Service struct {
	store    Store
	accounts Accounts
	faces    face.Store
	archive  Archive
	audit    Auditor
	jobs     Publisher
}

// NewService wires the directory service. archive may be nil.
func NewService(store Store, accounts Accounts, faces face.Store, archive Archive, audit Auditor, jobs Publisher) *Service {
	return &Service{store: store, accounts: accounts, faces: faces, archive: archive, audit: audit, jobs: jobs}
}

// AddTeacher provisions a login with a generated password, creates the
// profile and queues a credentials email. The password never leaves the mail
// path.
func (s *Service) AddTeacher(ctx context.Context, actor uuid.UUID, schoolID int, name, email, phone string) (Teacher, error) {
	school, err := s.store.GetSchool(ctx, schoolID)
	if err != nil {
		return Teacher{}, err
	}
	password, err := auth.GeneratePassword(name, schoolID)
	if err != nil {
		return Teacher{}, err
	}
	user, err := s.accounts.CreateAccount(ctx, email, password, name, phone, auth.RoleTeacher)
	if err != nil {
		return Teacher{}, err
	}
	t, err := s.store.CreateTeacher(ctx, Teacher{
		UserID:   user.ID,
		SchoolID: schoolID,
		Name:     name,
		Email:    email,
		Phone:    phone,
	})
	if err != nil {
		if cleanupErr := s.accounts.DeleteAccount(ctx, user.ID); cleanupErr != nil {
			log.Printf("directory: orphaned account %s after profile failure: %v", user.ID, cleanupErr)
		}
		return Teacher{}, err
	}
	s.record(ctx, activity.KindAddTeacher, actor, nil)
	s.publishJob(ctx, queue.TypeCredentialsMail, mailer.CredentialsJob{
		Name:     name,
		Email:    email,
		Password: password,
		School:   school.Name,
	})
	return t, nil
}

// UpdateTeacher edits profile fields.
func (s *Service) UpdateTeacher(ctx context.Context, actor uuid.UUID, t Teacher) (Teacher, error) {
	updated, err := s.store.UpdateTeacher(ctx, t)
	if err != nil {
		return Teacher{}, err
	}
	s.record(ctx, activity.KindUpdateTeacher, actor, nil)
	return updated, nil
}

// RemoveTeacher deletes the login account; the profile cascades with it.
func (s *Service) RemoveTeacher(ctx context.Context, actor uuid.UUID, teacherID int) error {
	t, err := s.store.TeacherByID(ctx, teacherID)
	if err != nil {
		return err
	}
	if err := s.accounts.DeleteAccount(ctx, t.UserID); err != nil {
		return err
	}
	s.record(ctx, activity.KindRemoveTeacher, actor, nil)
	return nil
}

// EnrollStudent registers a student. The photo is mandatory: the face must
// be extractable before any row is written, so a student without a usable
// reference embedding never exists.
func (s *Service) EnrollStudent(ctx context.Context, actor uuid.UUID, st Student, photoB64 string) (Student, error) {
	photo, err := face.DecodePhoto(photoB64)
	if err != nil {
		return Student{}, err
	}
	if len(photo) == 0 {
		return Student{}, fmt.Errorf("%w: photo required", face.ErrInvalidImage)
	}
	if err := s.faces.Enroll(ctx, st.RollNo, photo); err != nil {
		return Student{}, err
	}
	st.PhotoURL = s.archivePhoto(ctx, st.RollNo, photo)

	created, err := s.store.CreateStudent(ctx, st)
	if err != nil {
		if cleanupErr := s.faces.Delete(ctx, st.RollNo); cleanupErr != nil {
			log.Printf("directory: dangling embedding for %s after insert failure: %v", st.RollNo, cleanupErr)
		}
		return Student{}, err
	}
	s.record(ctx, activity.KindAddStudent, actor, &created.RollNo)
	return created, nil
}

// UpdateStudent edits profile fields and optionally re-enrolls the face from
// a new photo.
func (s *Service) UpdateStudent(ctx context.Context, actor uuid.UUID, st Student, photoB64 string) (Student, error) {
	if photoB64 != "" {
		photo, err := face.DecodePhoto(photoB64)
		if err != nil {
			return Student{}, err
		}
		if err := s.faces.Enroll(ctx, st.RollNo, photo); err != nil {
			return Student{}, err
		}
		st.PhotoURL = s.archivePhoto(ctx, st.RollNo, photo)
	}
	updated, err := s.store.UpdateStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	s.record(ctx, activity.KindUpdateStudent, actor, &updated.RollNo)
	return updated, nil
}

// RemoveStudent deletes the profile and its embedding. The audit entry is
// written first so the student reference nulls out with the delete.
func (s *Service) RemoveStudent(ctx context.Context, actor uuid.UUID, rollNo string) error {
	if _, err := s.store.StudentByRoll(ctx, rollNo); err != nil {
		return err
	}
	s.record(ctx, activity.KindRemoveStudent, actor, &rollNo)
	if err := s.store.DeleteStudent(ctx, rollNo); err != nil {
		return err
	}
	if err := s.faces.Delete(ctx, rollNo); err != nil {
		log.Printf("directory: delete embedding for %s: %v", rollNo, err)
	}
	return nil
}

func (s *Service) archivePhoto(ctx context.Context, rollNo string, photo []byte) string {
	if s.archive == nil || !s.archive.Enabled() {
		return ""
	}
	res, err := s.archive.UploadBytes(ctx, photo, rollNo)
	if err != nil {
		log.Printf("directory: archive photo for %s: %v", rollNo, err)
		return ""
	}
	return res.SecureURL
}

func (s *Service) record(ctx context.Context, kind activity.Kind, actor uuid.UUID, rollNo *string) {
	if err := s.audit.Record(ctx, kind, actor, rollNo); err != nil {
		log.Printf("directory: record %s: %v", kind, err)
	}
}

func (s *Service) publishJob(ctx context.Context, jobType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("directory: marshal %s job: %v", jobType, err)
		return
	}
	if err := s.jobs.Publish(ctx, queue.Message{Type: jobType, Body: body}); err != nil {
		log.Printf("directory: publish %s job: %v", jobType, err)
	}
}
