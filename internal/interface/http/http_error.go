package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/cityweather/internal/domain/weather"
	apperrors "github.com/yanqian/cityweather/pkg/errors"
)

// statusClientClosedRequest is the de facto status for requests abandoned by the client.
const statusClientClosedRequest = 499

// HTTPError is an error response: status, stable code, user-facing message
// and the cause, which is only logged.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// domainHTTPError maps domain codes to statuses. Messages are the domain's
// neutral text; upstream details only reach the logs.
func domainHTTPError(err error, fallback string) *HTTPError {
	code := apperrors.CodeOf(err)
	message := apperrors.MessageOf(err)
	switch code {
	case weather.CodeInvalidInput, weather.CodeInvalidRequest:
		return NewHTTPError(http.StatusBadRequest, code, message, err)
	case weather.CodeMissingLocation:
		return NewHTTPError(http.StatusUnprocessableEntity, code, message, err)
	case weather.CodeUnexpectedStatus, weather.CodeMalformedResponse:
		return NewHTTPError(http.StatusBadGateway, code, message, err)
	case weather.CodeStaleResult:
		return NewHTTPError(http.StatusConflict, code, message, err)
	}
	if isCancellation(err) {
		return NewHTTPError(statusClientClosedRequest, "request_cancelled", "request cancelled", err)
	}
	return NewHTTPError(http.StatusInternalServerError, fallback, "something went wrong", err)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func asHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return domainHTTPError(err, "internal_error")
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
