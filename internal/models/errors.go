package models

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeBlocked            = "BLOCKED"
	CodeForbidden          = "FORBIDDEN"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// ProblemDetails is the body written for every non-2xx response.
type ProblemDetails struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Status      int    `json:"status"`
	Detail      string `json:"detail"`
	Instance    string `json:"instance"`
	CustomField string `json:"custom-field,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code   string
	Status int
	Title  string
	Detail string
	// Field names the offending input for validation errors.
	Field string
	// Entity and EntityID are set for not-found and conflict errors.
	Entity   string
	EntityID string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code, so errors.Is(err, &AppError{Code: CodeNotFound}) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &AppError{Code: CodeValidation}
	ErrNotFound           = &AppError{Code: CodeNotFound}
	ErrUnauthorized       = &AppError{Code: CodeUnauthorized}
	ErrBlocked            = &AppError{Code: CodeBlocked}
	ErrForbidden          = &AppError{Code: CodeForbidden}
	ErrAlreadyExists      = &AppError{Code: CodeAlreadyExists}
	ErrServiceUnavailable = &AppError{Code: CodeServiceUnavailable}
)

// NewValidationError reports malformed or missing input.
func NewValidationError(field, detail string) *AppError {
	return &AppError{
		Code:   CodeValidation,
		Status: http.StatusBadRequest,
		Title:  "Validation Error",
		Detail: detail,
		Field:  field,
	}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity string, id interface{}) *AppError {
	entityID := fmt.Sprint(id)
	return &AppError{
		Code:     CodeNotFound,
		Status:   http.StatusNotFound,
		Title:    entity + " Not Found",
		Detail:   fmt.Sprintf("The %s with ID %s was not found.", entity, entityID),
		Entity:   entity,
		EntityID: entityID,
	}
}

func NewUnauthorizedError() *AppError {
	return &AppError{
		Code:   CodeUnauthorized,
		Status: http.StatusUnauthorized,
		Title:  "Unauthorized",
		Detail: "Authentication error.",
	}
}

func NewBlockedError() *AppError {
	return &AppError{
		Code:   CodeBlocked,
		Status: http.StatusForbidden,
		Title:  "User blocked",
		Detail: "Blocked error",
	}
}

// NewForbiddenError rejects an authenticated caller lacking the required role.
func NewForbiddenError(detail string) *AppError {
	return &AppError{
		Code:   CodeForbidden,
		Status: http.StatusForbidden,
		Title:  "Forbidden",
		Detail: detail,
	}
}

// NewAlreadyExistsError reports a uniqueness conflict such as a repeated retwit.
func NewAlreadyExistsError(entity, detail string) *AppError {
	return &AppError{
		Code:   CodeAlreadyExists,
		Status: http.StatusConflict,
		Title:  entity + " already exists",
		Detail: detail,
		Entity: entity,
	}
}

// NewServiceUnavailableError wraps a downstream failure.
func NewServiceUnavailableError(err error) *AppError {
	return &AppError{
		Code:   CodeServiceUnavailable,
		Status: http.StatusServiceUnavailable,
		Title:  "Service unavailable",
		Detail: "The server is not ready to handle the request.",
		Err:    err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:   CodeInternal,
		Status: http.StatusInternalServerError,
		Title:  "Internal Server Error",
		Detail: "An unexpected error occurred.",
		Err:    err,
	}
}

// AsAppError converts any error into an AppError. Fiber errors keep their status.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &AppError{
			Code:   CodeInternal,
			Status: fiberErr.Code,
			Title:  http.StatusText(fiberErr.Code),
			Detail: fiberErr.Message,
			Err:    err,
		}
	}

	return NewInternalError(err)
}

// RespondWithError writes the problem body for err.
func RespondWithError(c *fiber.Ctx, err error) error {
	appErr := AsAppError(err)

	if appErr.Status >= http.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			slog.String("code", appErr.Code),
			slog.Int("status", appErr.Status),
			slog.Any("error", err),
		)
	} else {
		slog.WarnContext(c.UserContext(), appErr.Title,
			slog.String("code", appErr.Code),
			slog.String("detail", appErr.Detail),
			slog.String("field", appErr.Field),
		)
	}

	return c.Status(appErr.Status).JSON(ProblemDetails{
		Type:        "about:blank",
		Title:       appErr.Title,
		Status:      appErr.Status,
		Detail:      appErr.Detail,
		Instance:    c.OriginalURL(),
		CustomField: appErr.Field,
	})
}
