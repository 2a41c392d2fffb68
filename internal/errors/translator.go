package errors

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	"gorm.io/gorm"
)

// ErrorTranslator 错误转换器
type ErrorTranslator struct{}

// NewErrorTranslator 创建错误转换器
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

// Translate 将各种类型的错误转换为AppError
func (t *ErrorTranslator) Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if stderrors.As(err, &validationErrs) {
		return t.translateValidationErrors(validationErrs)
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewSystemError(ErrCodeTimeout, "Operation timed out").WithCause(err)
	}

	var netErr *net.OpError
	if stderrors.As(err, &netErr) {
		return t.translateNetworkError(netErr)
	}

	if t.isDatabaseError(err) {
		return t.translateDatabaseError(err)
	}

	if strings.Contains(err.Error(), "connection refused") {
		return NewSystemError(ErrCodeExternalService, "External service unavailable").WithCause(err)
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// translateValidationErrors 转换验证错误
func (t *ErrorTranslator) translateValidationErrors(validationErrors validator.ValidationErrors) *AppError {
	details := make([]map[string]interface{}, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		details = append(details, map[string]interface{}{
			"field":   fieldError.Namespace(),
			"tag":     fieldError.Tag(),
			"message": t.getValidationErrorMessage(fieldError),
		})
	}

	return NewValidationError("Validation failed").
		WithDetails(map[string]interface{}{
			"errors": details,
		}).
		WithCause(validationErrors)
}

// translateNetworkError 转换网络错误
func (t *ErrorTranslator) translateNetworkError(netErr *net.OpError) *AppError {
	if netErr.Timeout() {
		return NewSystemError(ErrCodeTimeout, "Operation timed out").WithCause(netErr)
	}

	return NewSystemError(ErrCodeExternalService, "Network error").WithCause(netErr)
}

// translateDatabaseError 转换数据库错误
func (t *ErrorTranslator) translateDatabaseError(err error) *AppError {
	if stderrors.Is(err, gorm.ErrRecordNotFound) || stderrors.Is(err, sql.ErrNoRows) {
		return NewNotFoundError("Record").WithCause(err)
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "duplicate key value") || strings.Contains(errMsg, "violates unique constraint") {
		return NewBusinessError(ErrCodeConflict, "Resource already exists").WithCause(err)
	}

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewSystemError(ErrCodeConnectionFailed, "Database connection failed").WithCause(err)
	}

	var dirty migrate.ErrDirty
	if stderrors.As(err, &dirty) {
		return NewSystemError(ErrCodeDatabaseError, "Database migration in dirty state").WithCause(err)
	}

	return NewSystemError(ErrCodeDatabaseError, "Database operation failed").WithCause(err)
}

// isDatabaseError 检查是否为数据库错误
func (t *ErrorTranslator) isDatabaseError(err error) bool {
	if stderrors.Is(err, sql.ErrNoRows) || stderrors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var dirty migrate.ErrDirty
	if stderrors.As(err, &dirty) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	for _, keyword := range []string{"pq:", "postgresql", "sqlstate", "relation", "constraint", "duplicate key"} {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

// getValidationErrorMessage 获取验证错误消息
func (t *ErrorTranslator) getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "gte":
		return field + " must be greater than or equal to " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	case "dive":
		return field + " contains invalid items"
	default:
		return field + " is invalid"
	}
}

// Wrap 包装错误为AppError
func (t *ErrorTranslator) Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return NewSystemError(code, message).WithCause(err)
}
