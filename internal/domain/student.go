package domain

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Student is the enrollment record managed by the service.
type Student struct {
	ID             string
	OwnerID        *string
	Name           string
	Email          string
	Course         string
	EnrollmentDate time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OwnedBy reports whether the record is bound to the given identity.
func (s *Student) OwnedBy(callerID string) bool {
	return s.OwnerID != nil && *s.OwnerID == callerID
}

// CourseCount is one row of the per-course breakdown.
type CourseCount struct {
	Course string
	Count  int64
}

// RecentStudent is the projection exposed by the analytics report.
type RecentStudent struct {
	ID             string
	Name           string
	Course         string
	EnrollmentDate time.Time
}

// Summary is the aggregate report over all student records.
type Summary struct {
	Total    int64
	ByCourse []CourseCount
	Recent   []RecentStudent
}

// StudentPatch names the columns to change. Nil fields keep their stored value.
type StudentPatch struct {
	Name           *string
	Email          *string
	Course         *string
	EnrollmentDate *time.Time
}

// Fields lists the supplied columns in wire-name order.
func (p StudentPatch) Fields() []string {
	fields := []string{}
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Course != nil {
		fields = append(fields, "course")
	}
	if p.EnrollmentDate != nil {
		fields = append(fields, "enrollment_date")
	}
	return fields
}
