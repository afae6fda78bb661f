package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/access"
	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/events"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util/errorutil"
)

// StudentService applies validation and ownership rules to student records.
type StudentService struct {
	students   repository.StudentRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// StudentDependencies bundles collaborators for the student service.
type StudentDependencies struct {
	StudentRepo repository.StudentRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// StudentFields carries caller-supplied values. Nil means "not supplied".
type StudentFields struct {
	Name           *string
	Email          *string
	Course         *string
	EnrollmentDate *time.Time
}

// NewStudentService constructs the service.
func NewStudentService(deps StudentDependencies) *StudentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:   deps.StudentRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// List returns every record for admins, newest first, and at most the
// caller's own record for students.
func (s *StudentService) List(ctx context.Context, caller domain.Caller) ([]domain.Student, error) {
	if caller.IsAdmin() {
		students, err := s.students.List(ctx)
		if err != nil {
			return nil, mapStoreError(err)
		}
		return students, nil
	}
	if caller.Role != domain.RoleStudent {
		return nil, apperrors.NewForbidden("forbidden")
	}

	mine, err := s.students.FirstByOwner(ctx, caller.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return []domain.Student{}, nil
	}
	if err != nil {
		return nil, mapStoreError(err)
	}
	return []domain.Student{*mine}, nil
}

// Get returns one record if the caller may read it.
func (s *StudentService) Get(ctx context.Context, caller domain.Caller, id string) (*domain.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := access.Authorize(caller, student, access.OpRead); err != nil {
		return nil, err
	}
	return student, nil
}

// Create validates input and stores a new record. Students become the
// owner of what they create; admin-created records are unbound.
func (s *StudentService) Create(ctx context.Context, caller domain.Caller, input StudentFields) (*domain.Student, error) {
	if !caller.Role.Valid() {
		return nil, apperrors.NewForbidden("forbidden")
	}
	in, _ := normalize(input)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	student := &domain.Student{
		Name:           in.Name,
		Email:          in.Email,
		Course:         in.Course,
		EnrollmentDate: in.EnrollmentDate,
	}
	if !caller.IsAdmin() {
		owner := caller.ID
		student.OwnerID = &owner
	}

	if err := s.students.Create(ctx, student); err != nil {
		return nil, mapStoreError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventStudentCreated,
		StudentID: student.ID,
		Actor:     actorOf(caller),
		Payload: events.StudentCreatedPayload{
			OwnerID: student.OwnerID,
			Course:  student.Course,
		},
	})
	return student, nil
}

// Update writes the supplied fields to an existing record. Owner and id
// are never changed. Columns the caller did not supply are left to the
// store so concurrent partial updates do not overwrite each other.
func (s *StudentService) Update(ctx context.Context, caller domain.Caller, id string, fields StudentFields) (*domain.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := access.Authorize(caller, student, access.OpWrite); err != nil {
		return nil, err
	}

	in, supplied := normalize(fields)
	if err := validateSupplied(in, supplied); err != nil {
		return nil, err
	}
	patch := buildPatch(in, supplied)
	changed := patch.Fields()
	if len(changed) == 0 {
		return student, nil
	}

	updated, err := s.students.UpdateFields(ctx, student.ID, patch)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventStudentUpdated,
		StudentID: updated.ID,
		Actor:     actorOf(caller),
		Payload:   events.StudentUpdatedPayload{Fields: changed},
	})
	return updated, nil
}

// Remove permanently deletes a record.
func (s *StudentService) Remove(ctx context.Context, caller domain.Caller, id string) error {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}
	if err := access.Authorize(caller, student, access.OpWrite); err != nil {
		return err
	}
	if err := s.students.Delete(ctx, student.ID); err != nil {
		return mapStoreError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventStudentDeleted,
		StudentID: student.ID,
		Actor:     actorOf(caller),
	})
	return nil
}

func buildPatch(in studentInput, supplied map[string]bool) domain.StudentPatch {
	var patch domain.StudentPatch
	if supplied["Name"] {
		patch.Name = &in.Name
	}
	if supplied["Email"] {
		patch.Email = &in.Email
	}
	if supplied["Course"] {
		patch.Course = &in.Course
	}
	if supplied["EnrollmentDate"] {
		patch.EnrollmentDate = &in.EnrollmentDate
	}
	return patch
}

// dateOnly keeps the UTC calendar day of t.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("student", nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("email must be unique", map[string]any{"field": "email"})
	case errors.Is(err, repository.ErrConstraint):
		return apperrors.NewValidationError("invalid student data", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}

func (s *StudentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("student_id", event.StudentID),
			zap.Error(err))
	}
}

func actorOf(caller domain.Caller) events.Actor {
	return events.Actor{ID: caller.ID, Role: caller.Role}
}
