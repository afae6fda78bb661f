package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/repository/testutil"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util/errorutil"
)

func seed(t *testing.T, svc *StudentService, courses ...string) []*domain.Student {
	t.Helper()
	out := make([]*domain.Student, 0, len(courses))
	for i, course := range courses {
		st, err := svc.Create(context.Background(), adminCaller,
			fields(fmt.Sprintf("Student %d", i), fmt.Sprintf("s%d@x.com", i), course, "2024-01-01"))
		require.NoError(t, err)
		out = append(out, st)
	}
	return out
}

func TestSummarize_CountsByCourseDescending(t *testing.T) {
	repo := testutil.NewStudentStore()
	seed(t, newStudentService(repo), "React", "Node", "React", "Node", "Node")

	summary, err := NewAnalyticsService(repo).Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Total)
	assert.Equal(t, []domain.CourseCount{
		{Course: "Node", Count: 3},
		{Course: "React", Count: 2},
	}, summary.ByCourse)
}

func TestSummarize_TiesOrderedByCourseName(t *testing.T) {
	repo := testutil.NewStudentStore()
	seed(t, newStudentService(repo), "Node", "Fullstack", "React", "Fullstack", "Node")

	summary, err := NewAnalyticsService(repo).Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.CourseCount{
		{Course: "Fullstack", Count: 2},
		{Course: "Node", Count: 2},
		{Course: "React", Count: 1},
	}, summary.ByCourse)
}

func TestSummarize_RecentIsFiveNewestProjected(t *testing.T) {
	repo := testutil.NewStudentStore()
	created := seed(t, newStudentService(repo), "A1", "A2", "A3", "A4", "A5", "A6", "A7")

	summary, err := NewAnalyticsService(repo).Summarize(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Recent, RecentLimit)
	for i, r := range summary.Recent {
		want := created[len(created)-1-i]
		assert.Equal(t, domain.RecentStudent{
			ID:             want.ID,
			Name:           want.Name,
			Course:         want.Course,
			EnrollmentDate: want.EnrollmentDate,
		}, r)
	}
}

func TestSummarize_EmptyStore(t *testing.T) {
	summary, err := NewAnalyticsService(testutil.NewStudentStore()).Summarize(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Total)
	assert.NotNil(t, summary.ByCourse)
	assert.Empty(t, summary.ByCourse)
	assert.Empty(t, summary.Recent)
}

func TestSummarize_ReflectsWritesBetweenCalls(t *testing.T) {
	repo := testutil.NewStudentStore()
	svc := newStudentService(repo)
	analytics := NewAnalyticsService(repo)
	created := seed(t, svc, "React", "Node")

	first, err := analytics.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Total)

	require.NoError(t, svc.Remove(context.Background(), adminCaller, created[0].ID))

	second, err := analytics.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Total)
	assert.Equal(t, []domain.CourseCount{{Course: "Node", Count: 1}}, second.ByCourse)
}

func TestSummarize_StoreFailure(t *testing.T) {
	for _, op := range []string{"count", "by_course", "recent"} {
		t.Run(op, func(t *testing.T) {
			repo := testutil.NewStudentStore()
			seed(t, newStudentService(repo), "React")
			repo.Fail(op, errors.New("timeout"))

			summary, err := NewAnalyticsService(repo).Summarize(context.Background())
			assertCode(t, err, apperrors.CodeInternal)
			assert.Nil(t, summary)
		})
	}
}
