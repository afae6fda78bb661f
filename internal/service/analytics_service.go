package service

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util/errorutil"
)

// RecentLimit is how many of the newest records the summary exposes.
const RecentLimit = 5

// AnalyticsService builds the enrollment summary report. It is not scoped by
// ownership; callers must restrict it to administrators.
type AnalyticsService struct {
	students repository.StudentRepository
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(students repository.StudentRepository) *AnalyticsService {
	return &AnalyticsService{students: students}
}

// Summarize computes the report from the current store contents.
// The three reads run concurrently and independently; concurrent writes may
// show up in some of them.
func (s *AnalyticsService) Summarize(ctx context.Context) (*domain.Summary, error) {
	var (
		total    int64
		byCourse []domain.CourseCount
		latest   []domain.Student
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.students.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		byCourse, err = s.students.CountByCourse(gctx)
		return err
	})
	g.Go(func() (err error) {
		latest, err = s.students.Recent(gctx, RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	sortCourseCounts(byCourse)
	if byCourse == nil {
		byCourse = []domain.CourseCount{}
	}
	if len(latest) > RecentLimit {
		latest = latest[:RecentLimit]
	}

	recent := make([]domain.RecentStudent, 0, len(latest))
	for _, st := range latest {
		recent = append(recent, domain.RecentStudent{
			ID:             st.ID,
			Name:           st.Name,
			Course:         st.Course,
			EnrollmentDate: st.EnrollmentDate,
		})
	}
	return &domain.Summary{Total: total, ByCourse: byCourse, Recent: recent}, nil
}

// sortCourseCounts orders by count descending, then course name.
func sortCourseCounts(counts []domain.CourseCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Course < counts[j].Course
	})
}
