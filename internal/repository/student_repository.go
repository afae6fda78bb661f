package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// StudentRepository encapsulates student persistence.
type StudentRepository interface {
	Create(ctx context.Context, student *domain.Student) error
	// UpdateFields writes only the supplied columns and returns the stored row.
	UpdateFields(ctx context.Context, id string, patch domain.StudentPatch) (*domain.Student, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Student, error)
	// List returns every record, newest identifier first.
	List(ctx context.Context) ([]domain.Student, error)
	// FirstByOwner returns the oldest record bound to ownerID.
	FirstByOwner(ctx context.Context, ownerID string) (*domain.Student, error)
	Count(ctx context.Context) (int64, error)
	CountByCourse(ctx context.Context) ([]domain.CourseCount, error)
	// Recent returns up to limit records, latest created_at first.
	Recent(ctx context.Context, limit int) ([]domain.Student, error)
}

type studentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository returns a Postgres-backed implementation.
func NewStudentRepository(pool *pgxpool.Pool) StudentRepository {
	return &studentRepository{pool: pool}
}

const studentColumns = `id, owner_id, name, email, course, enrollment_date, created_at, updated_at`

func (r *studentRepository) Create(ctx context.Context, student *domain.Student) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate student id: %w", err)
	}

	const query = `
        INSERT INTO students (id, owner_id, name, email, course, enrollment_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query,
		id.String(),
		student.OwnerID,
		student.Name,
		student.Email,
		student.Course,
		student.EnrollmentDate,
	).Scan(&student.CreatedAt, &student.UpdatedAt); err != nil {
		return translateError(err)
	}
	student.ID = id.String()
	return nil
}

// UpdateFields merges patch into the row in one statement so concurrent
// partial updates never overwrite each other's columns. owner_id is never touched.
func (r *studentRepository) UpdateFields(ctx context.Context, id string, patch domain.StudentPatch) (*domain.Student, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	query := `
        UPDATE students SET
            name=COALESCE($1::text, name),
            email=COALESCE($2::text, email),
            course=COALESCE($3::text, course),
            enrollment_date=COALESCE($4::date, enrollment_date),
            updated_at=NOW()
        WHERE id=$5
        RETURNING ` + studentColumns

	var student domain.Student
	row := r.pool.QueryRow(ctx, query, patch.Name, patch.Email, patch.Course, patch.EnrollmentDate, id)
	if err := scanStudent(row, &student); err != nil {
		return nil, translateError(err)
	}
	return &student, nil
}

func (r *studentRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id=$1`, id)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (*domain.Student, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *studentRepository) FirstByOwner(ctx context.Context, ownerID string) (*domain.Student, error) {
	if !validID(ownerID) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE owner_id=$1 ORDER BY id ASC LIMIT 1`
	return r.fetchSingle(ctx, query, ownerID)
}

func (r *studentRepository) List(ctx context.Context) ([]domain.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id DESC`)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

func (r *studentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&total); err != nil {
		return 0, translateError(err)
	}
	return total, nil
}

func (r *studentRepository) CountByCourse(ctx context.Context) ([]domain.CourseCount, error) {
	const query = `
        SELECT course, COUNT(*) AS cnt
        FROM students
        GROUP BY course
        ORDER BY cnt DESC, course ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var result []domain.CourseCount
	for rows.Next() {
		var cc domain.CourseCount
		if err := rows.Scan(&cc.Course, &cc.Count); err != nil {
			return nil, err
		}
		result = append(result, cc)
	}
	return result, rows.Err()
}

func (r *studentRepository) Recent(ctx context.Context, limit int) ([]domain.Student, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

func (r *studentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Student, error) {
	var student domain.Student
	if err := scanStudent(r.pool.QueryRow(ctx, query, arg), &student); err != nil {
		return nil, translateError(err)
	}
	return &student, nil
}

func scanStudent(row pgx.Row, student *domain.Student) error {
	return row.Scan(
		&student.ID,
		&student.OwnerID,
		&student.Name,
		&student.Email,
		&student.Course,
		&student.EnrollmentDate,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
}

func scanStudents(rows pgx.Rows) ([]domain.Student, error) {
	result := []domain.Student{}
	for rows.Next() {
		var student domain.Student
		if err := scanStudent(rows, &student); err != nil {
			return nil, err
		}
		result = append(result, student)
	}
	return result, rows.Err()
}

// validID guards uuid columns against malformed input that postgres would reject.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
