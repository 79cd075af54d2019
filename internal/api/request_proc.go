package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/squad-roster/internal/service"
)

// ProcessRequest runs req through steps in order and stops at the first failure.
func ProcessRequest[T any](e echo.Context, req *T, steps ...func(echo.Context, *T) error) error {
	for _, step := range steps {
		if err := step(e, req); err != nil {
			return err
		}
	}
	return nil
}

func bindStep[T any](e echo.Context, req *T) error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}
	return nil
}

func validateStep[T any](e echo.Context, req *T) error {
	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func sessionIDStep[T any](e echo.Context, _ *T) error {
	if strings.TrimSpace(e.Param("id")) == "" {
		return service.NewError(service.ErrorCodeBadRequest, "session id is required")
	}
	return nil
}

// decodeRequest binds and validates the body of a session-scoped request.
func decodeRequest[T any](e echo.Context, req *T) *service.Error {
	err := ProcessRequest(e, req, sessionIDStep[T], bindStep[T], validateStep[T])
	if err == nil {
		return nil
	}

	var serr *service.Error
	if errors.As(err, &serr) {
		return serr
	}
	return service.NewError(service.ErrorCodeInvalidBody, err.Error())
}
