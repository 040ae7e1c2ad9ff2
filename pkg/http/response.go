package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// APIResponse is the JSON envelope every endpoint replies with.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func reply(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return reply(c, http.StatusOK, data)
}

// AcceptedResponse acknowledges work handed to a background queue.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return reply(c, http.StatusAccepted, data)
}

func TextResponse(c echo.Context, body string) error {
	return c.String(http.StatusOK, body)
}

// BadRequestResponse lists the rejected fields.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return reply(c, http.StatusBadRequest, errs)
}

// AppErrorResponse renders err when it is an *AppError and a bare 500
// envelope otherwise. Causes attached with WithError are not exposed.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError(http.StatusText(http.StatusInternalServerError))
	}
	if appErr.RetryAfter > 0 {
		secs := int(math.Ceil(appErr.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	}
	return reply(c, appErr.Status, []*AppError{appErr})
}
