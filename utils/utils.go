package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"teamdesk/apperr"
)

// ErrorResponse creates a standardized error response. Server-side failures
// are reported through the error logger before rendering.
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	if status >= fiber.StatusInternalServerError && err != nil {
		LogError("internal_error", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
	}
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// FailResponse renders a typed domain failure, mapping its kind to a status
// code. Untyped errors surface as internal server errors and are reported
// through the error logger.
func FailResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		status = fiber.StatusNotFound
	case apperr.Conflict:
		status = fiber.StatusConflict
	case apperr.Forbidden:
		status = fiber.StatusForbidden
	case apperr.Invalid:
		status = fiber.StatusBadRequest
	}
	if status == fiber.StatusInternalServerError {
		LogError("internal_error", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
	}
	return ErrorResponse(c, status, err.Error(), nil)
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Pagination reads page and limit query parameters, clamping them to sane
// bounds.
func Pagination(c *fiber.Ctx) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
