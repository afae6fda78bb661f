package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/repository"
)

// StudentStore is an in-memory repository.StudentRepository with the same ordering
// and uniqueness guarantees as the Postgres implementation.
type StudentStore struct {
	mu     sync.Mutex
	seq    int
	clock  time.Time
	rows   map[string]domain.Student
	failOn map[string]error
}

func NewStudentStore() *StudentStore {
	return &StudentStore{
		clock:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		rows:   map[string]domain.Student{},
		failOn: map[string]error{},
	}
}

// Fail makes op return err. Ops: create, update, delete, get, list, owner,
// count, by_course, recent.
func (r *StudentStore) Fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[op] = err
}

func (r *StudentStore) injected(op string) error {
	return r.failOn[op]
}

func (r *StudentStore) emailTaken(email, exceptID string) bool {
	for id, row := range r.rows {
		if id != exceptID && row.Email == email {
			return true
		}
	}
	return false
}

func (r *StudentStore) Create(_ context.Context, student *domain.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("create"); err != nil {
		return err
	}
	if r.emailTaken(student.Email, "") {
		return fmt.Errorf("%w: students_email_key", repository.ErrDuplicate)
	}
	r.seq++
	r.clock = r.clock.Add(time.Minute)
	student.ID = fmt.Sprintf("00000000-0000-7000-8000-%012d", r.seq)
	student.CreatedAt = r.clock
	student.UpdatedAt = r.clock
	r.rows[student.ID] = *student
	return nil
}

func (r *StudentStore) UpdateFields(_ context.Context, id string, patch domain.StudentPatch) (*domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("update"); err != nil {
		return nil, err
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Name != nil {
		row.Name = *patch.Name
	}
	if patch.Email != nil {
		if r.emailTaken(*patch.Email, id) {
			return nil, fmt.Errorf("%w: students_email_key", repository.ErrDuplicate)
		}
		row.Email = *patch.Email
	}
	if patch.Course != nil {
		row.Course = *patch.Course
	}
	if patch.EnrollmentDate != nil {
		row.EnrollmentDate = *patch.EnrollmentDate
	}
	r.clock = r.clock.Add(time.Second)
	row.UpdatedAt = r.clock
	r.rows[id] = row
	return &row, nil
}

func (r *StudentStore) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("delete"); err != nil {
		return err
	}
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *StudentStore) GetByID(_ context.Context, id string) (*domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("get"); err != nil {
		return nil, err
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (r *StudentStore) sorted(less func(a, b domain.Student) bool) []domain.Student {
	out := make([]domain.Student, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *StudentStore) List(_ context.Context) ([]domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("list"); err != nil {
		return nil, err
	}
	return r.sorted(func(a, b domain.Student) bool { return a.ID > b.ID }), nil
}

func (r *StudentStore) FirstByOwner(_ context.Context, ownerID string) (*domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("owner"); err != nil {
		return nil, err
	}
	for _, row := range r.sorted(func(a, b domain.Student) bool { return a.ID < b.ID }) {
		if row.OwnedBy(ownerID) {
			found := row
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *StudentStore) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("count"); err != nil {
		return 0, err
	}
	return int64(len(r.rows)), nil
}

// CountByCourse returns groups in course-name order so callers must sort.
func (r *StudentStore) CountByCourse(_ context.Context) ([]domain.CourseCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("by_course"); err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, row := range r.rows {
		counts[row.Course]++
	}
	out := make([]domain.CourseCount, 0, len(counts))
	for course, n := range counts {
		out = append(out, domain.CourseCount{Course: course, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Course < out[j].Course })
	return out, nil
}

func (r *StudentStore) Recent(_ context.Context, limit int) ([]domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected("recent"); err != nil {
		return nil, err
	}
	out := r.sorted(func(a, b domain.Student) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Size reports the number of stored records.
func (r *StudentStore) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu   sync.Mutex
	seq  int
	rows map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{rows: map[string]domain.User{}}
}

func (r *UserStore) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if strings.EqualFold(row.Email, user.Email) {
			return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
	}
	r.seq++
	user.ID = fmt.Sprintf("10000000-0000-4000-8000-%012d", r.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.rows[user.ID] = *user
	return nil
}

func (r *UserStore) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[user.ID]; !ok {
		return repository.ErrNotFound
	}
	r.rows[user.ID] = *user
	return nil
}

func (r *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (r *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Email == email {
			found := row
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Denylist is an in-memory token revocation list.
type Denylist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func NewDenylist() *Denylist {
	return &Denylist{revoked: map[string]time.Duration{}}
}

func (r *Denylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = ttl
	return nil
}

func (r *Denylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[tokenID]
	return ok, nil
}

// TTL returns the lifetime a token was revoked for.
func (r *Denylist) TTL(tokenID string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ttl, ok := r.revoked[tokenID]
	return ttl, ok
}

// Break makes every lookup fail with err.
func (r *Denylist) Break(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

var (
	_ repository.StudentRepository = (*StudentStore)(nil)
	_ repository.UserRepository    = (*UserStore)(nil)
)
