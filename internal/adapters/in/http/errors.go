package http

import (
	"errors"
	"net/http"

	"freight/internal/core/application/usecases/queries"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal error"

// statusFor maps domain errors onto HTTP status codes. Invariant
// violations are checked first because they must never look like user errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrInvariantViolation):
		return http.StatusInternalServerError
	case errors.Is(err, errs.ErrObjectNotFound),
		errors.Is(err, order.ErrMasterOrderNotFound),
		errors.Is(err, order.ErrPartialOrderNotFound),
		errors.Is(err, queries.ErrNoBroadcastSnapshot):
		return http.StatusNotFound
	case errors.Is(err, order.ErrMasterOrderNotOpen),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, errs.ErrVersionIsInvalid):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange),
		errors.Is(err, order.ErrCapacityExceeded),
		errors.Is(err, order.ErrBelowMinimumLoad),
		errors.Is(err, order.ErrBidAmountExceedsMaximum),
		errors.Is(err, order.ErrComplianceRejected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(ctx echo.Context, err error) error {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", ctx.Request().Method),
			zap.String("path", ctx.Path()),
			zap.Error(err),
		)
		message = internalErrorMessage
	}
	return ctx.JSON(status, Error{Code: status, Message: message})
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, Error{Code: http.StatusBadRequest, Message: message})
}

// ErrorHandler renders errors that escape handlers, including echo's own
// 404 and 405, in the same body shape.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := internalErrorMessage
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled error", zap.String("path", ctx.Path()), zap.Error(err))
		}

		if writeErr := ctx.JSON(status, Error{Code: status, Message: message}); writeErr != nil {
			logger.Warn("write error response", zap.Error(writeErr))
		}
	}
}
