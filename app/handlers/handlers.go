// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/chat-sequencer/app/dto"
	"github.com/amirphl/chat-sequencer/app/middleware"
	businessflow "github.com/amirphl/chat-sequencer/business_flow"
	"github.com/amirphl/chat-sequencer/utils"
)

// RequestTimeout bounds the flow call behind every request
const RequestTimeout = 30 * time.Second

var errInvalidNumber = errors.New("must be a positive integer")

// FieldError is the per-field entry of a VALIDATION_ERROR response
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type baseHandler struct{}

func (baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext carries request metadata into the flows. The caller must defer cancel.
func (baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = c.GetRespHeader("X-Request-ID")
	}
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID)
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, RequestTimeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx, cancel
}

// requireUser reads the authenticated actor. When ok is false the 401 has already been
// written and the caller must return the accompanying error without doing any work.
func (h baseHandler) requireUser(c fiber.Ctx) (userID int64, ok bool, err error) {
	userID, ok = middleware.GetUserIDFromContext(c)
	if !ok {
		return 0, false, h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	return userID, true, nil
}

// flowError maps a business flow failure onto an HTTP status.
// Unavailable dependencies answer 503 so callers know the request may be retried.
func (h baseHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if fields, ok := businessflow.ValidationErrors(err); ok {
		details := make([]FieldError, 0, len(fields))
		for _, fe := range fields {
			details = append(details, FieldError{Field: fe.Field(), Message: getValidationErrorMessage(fe)})
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	be, ok := businessflow.AsBusinessError(err)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}

	switch {
	case businessflow.IsParentNotFound(err), businessflow.IsMessageNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, be.Message, be.Code, nil)
	case businessflow.IsMessageAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, be.Message, be.Code, nil)
	case businessflow.IsInvalidFamily(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
	case businessflow.IsRetryable(err):
		c.Set("Retry-After", "1")
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, be.Message, be.Code, nil)
	case businessflow.IsInvalidSeed(err):
		return h.ErrorResponse(c, fiber.StatusInternalServerError, be.Message, be.Code, nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, be.Code, nil)
}

func parsePositiveParam(c fiber.Ctx, name string) (int64, error) {
	n, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s %w", name, errInvalidNumber)
	}
	return n, nil
}

// parsePaging reads optional page and limit query values; zero means "use the default"
func parsePaging(c fiber.Ctx) (page, limit int, err error) {
	for name, dst := range map[string]*int{"page": &page, "limit": &limit} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 {
			return 0, 0, fmt.Errorf("%s %w", name, errInvalidNumber)
		}
		*dst = n
	}
	return page, limit, nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
