package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/enrollment-service/internal/api/dto"
	"github.com/spec-kit/enrollment-service/internal/auth"
	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/service"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util/errorutil"
)

// StudentsHandler exposes student record endpoints.
type StudentsHandler struct {
	service *service.StudentService
}

// NewStudentsHandler constructs handler.
func NewStudentsHandler(studentService *service.StudentService) *StudentsHandler {
	return &StudentsHandler{service: studentService}
}

// List GET /students.
func (h *StudentsHandler) List(c *fiber.Ctx) error {
	caller, err := auth.CallerFromContext(c)
	if err != nil {
		return err
	}
	students, err := h.service.List(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewStudentList(students))
}

// Get GET /students/:id. The record is wrapped in a one-element array.
func (h *StudentsHandler) Get(c *fiber.Ctx) error {
	caller, err := auth.CallerFromContext(c)
	if err != nil {
		return err
	}
	student, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON([]dto.StudentResponse{dto.NewStudentResponse(student)})
}

// Create POST /students.
func (h *StudentsHandler) Create(c *fiber.Ctx) error {
	caller, err := auth.CallerFromContext(c)
	if err != nil {
		return err
	}
	input, err := parseStudentRequest(c)
	if err != nil {
		return err
	}
	student, err := h.service.Create(c.UserContext(), caller, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewStudentResponse(student))
}

// Update PUT /students/:id.
func (h *StudentsHandler) Update(c *fiber.Ctx) error {
	caller, err := auth.CallerFromContext(c)
	if err != nil {
		return err
	}
	patch, err := parseStudentRequest(c)
	if err != nil {
		return err
	}
	if _, err := h.service.Update(c.UserContext(), caller, c.Params("id"), patch); err != nil {
		return err
	}
	return c.JSON(dto.UpdatedResponse{Updated: 1})
}

// Delete DELETE /students/:id.
func (h *StudentsHandler) Delete(c *fiber.Ctx) error {
	caller, err := auth.CallerFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.Remove(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.DeletedResponse{Deleted: 1})
}

func parseStudentRequest(c *fiber.Ctx) (service.StudentFields, error) {
	var req dto.StudentRequest
	if err := c.BodyParser(&req); err != nil {
		return service.StudentFields{}, apperrors.NewValidationError("invalid payload", nil)
	}

	fields := service.StudentFields{
		Name:   req.Name,
		Email:  req.Email,
		Course: req.Course,
	}
	if req.EnrollmentDate != nil {
		date, err := parseDate(*req.EnrollmentDate)
		if err != nil {
			return service.StudentFields{}, apperrors.NewFieldError("enrollment_date", "enrollment date must be YYYY-MM-DD")
		}
		fields.EnrollmentDate = &date
	}
	return fields, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Blank input
// yields the zero time, which validation reports as missing.
func parseDate(val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(domain.DateLayout, val); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, val)
}
