package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

// ErrorHandler renders every unhandled error as an OperationOutcome.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status  int
			outcome *fhir.OperationOutcome
			he      *echo.HTTPError
		)
		if errors.As(err, &he) {
			status = he.Code
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
			outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, issueTypeFor(status), msg)
		} else {
			status, outcome = fhir.OutcomeForError(err)
		}
		if status >= 500 {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, outcome)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func issueTypeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return fhir.IssueTypeNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return fhir.IssueTypeSecurity
	case http.StatusTooManyRequests:
		return fhir.IssueTypeThrottled
	case http.StatusRequestEntityTooLarge:
		return fhir.IssueTypeTooLong
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fhir.IssueTypeInvalid
	}
	if status >= 500 {
		return fhir.IssueTypeException
	}
	return fhir.IssueTypeProcessing
}
