package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// NewValidator returns a validator with the portal's custom tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerPortalValidators(v)
	return v
}

func registerPortalValidators(v *validator.Validate) {
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		return models.BulkOperationMode(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})
}
