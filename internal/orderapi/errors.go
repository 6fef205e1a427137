package orderapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/cutroom/internal/domain"
	"github.com/dukerupert/cutroom/internal/handler"
	"github.com/dukerupert/cutroom/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errorHandler renders every error as {"error": {code, message}}. The
// storefront shows 4xx messages to the shopper unchanged.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	body, status := describe(err)

	l := zerolog.Ctx(c.Request().Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("op", domain.ErrorOp(err)).Msg("request failed")
	} else {
		l.Info().Err(err).Str("code", body.Code).Msg("request rejected")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, map[string]errorBody{"error": body})
	}
	if err != nil {
		l.Error().Err(err).Msg("failed to write error response")
	}
}

func describe(err error) (errorBody, int) {
	if fields := domain.GetValidationFields(err); fields != nil {
		return errorBody{
			Code:    domain.EINVALID,
			Message: "Order payload is invalid",
			Fields:  fields,
		}, http.StatusBadRequest
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := domain.EINVALID
		switch {
		case he.Code == http.StatusNotFound:
			code = domain.ENOTFOUND
		case he.Code == http.StatusUnauthorized:
			code = domain.EUNAUTHORIZED
		case he.Code == http.StatusRequestEntityTooLarge:
			code = domain.ETOOLARGE
		case he.Code >= http.StatusInternalServerError:
			code = domain.EINTERNAL
		}
		msg := fmt.Sprint(he.Message)
		if code == domain.EINTERNAL {
			msg = domain.ErrorMessage(err)
		}
		return errorBody{Code: code, Message: msg}, he.Code
	}

	code := domain.ErrorCode(err)
	return errorBody{Code: code, Message: domain.ErrorMessage(err)}, handler.ErrorCodeToHTTPStatus(code)
}

// structValidator adapts the validation package to echo.Validator.
type structValidator struct{}

func (structValidator) Validate(i any) error {
	return validation.Struct("orderapi.validate", i)
}
