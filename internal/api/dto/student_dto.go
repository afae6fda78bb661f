package dto

import (
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// StudentRequest is used for both create and partial update.
// Absent JSON keys decode to nil and are left untouched on update.
type StudentRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Course         *string `json:"course"`
	EnrollmentDate *string `json:"enrollment_date"`
}

// StudentResponse mirrors the stored record. `_id` and `createdAt` keep the
// names existing web clients read.
type StudentResponse struct {
	MongoID        string    `json:"_id"`
	ID             string    `json:"id"`
	Owner          *string   `json:"user,omitempty"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Course         string    `json:"course"`
	EnrollmentDate string    `json:"enrollment_date"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UpdatedResponse acknowledges an update.
type UpdatedResponse struct {
	Updated int `json:"updated"`
}

// DeletedResponse acknowledges a delete.
type DeletedResponse struct {
	Deleted int `json:"deleted"`
}

// CourseCountResponse is one per-course row.
type CourseCountResponse struct {
	Course string `json:"course"`
	Count  int64  `json:"count"`
}

// RecentStudentResponse is the analytics projection of a record.
type RecentStudentResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Course         string `json:"course"`
	EnrollmentDate string `json:"enrollment_date"`
}

// SummaryResponse is the analytics report.
type SummaryResponse struct {
	Total    int64                   `json:"total"`
	ByCourse []CourseCountResponse   `json:"byCourse"`
	Recent   []RecentStudentResponse `json:"recent"`
}

// NewStudentResponse maps a domain record.
func NewStudentResponse(st *domain.Student) StudentResponse {
	return StudentResponse{
		MongoID:        st.ID,
		ID:             st.ID,
		Owner:          st.OwnerID,
		Name:           st.Name,
		Email:          st.Email,
		Course:         st.Course,
		EnrollmentDate: st.EnrollmentDate.Format(domain.DateLayout),
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

// NewStudentList maps records, never returning nil.
func NewStudentList(students []domain.Student) []StudentResponse {
	out := make([]StudentResponse, 0, len(students))
	for i := range students {
		out = append(out, NewStudentResponse(&students[i]))
	}
	return out
}

// NewSummaryResponse maps the analytics report.
func NewSummaryResponse(summary *domain.Summary) SummaryResponse {
	resp := SummaryResponse{
		Total:    summary.Total,
		ByCourse: make([]CourseCountResponse, 0, len(summary.ByCourse)),
		Recent:   make([]RecentStudentResponse, 0, len(summary.Recent)),
	}
	for _, cc := range summary.ByCourse {
		resp.ByCourse = append(resp.ByCourse, CourseCountResponse{Course: cc.Course, Count: cc.Count})
	}
	for _, r := range summary.Recent {
		resp.Recent = append(resp.Recent, RecentStudentResponse{
			ID:             r.ID,
			Name:           r.Name,
			Course:         r.Course,
			EnrollmentDate: r.EnrollmentDate.Format(domain.DateLayout),
		})
	}
	return resp
}
