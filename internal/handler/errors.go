package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/pkg/response"
	"github.com/spektr-org/flightquery/session"
	"github.com/spektr-org/flightquery/translator"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	var te *translator.TranslationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, engine.ErrInvalidFilterSpec):
		return http.StatusUnprocessableEntity, "Invalid filter spec"
	case errors.As(err, &te):
		return http.StatusBadGateway, "Translation failed"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, session.ErrNoDataset):
		return http.StatusConflict, "No dataset loaded"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "Dataset too large"
	case errors.Is(err, helpers.ErrMissingColumns):
		return http.StatusBadRequest, "Dataset is missing required columns"
	}
	return http.StatusInternalServerError, "Internal error"
}

func fail(c *gin.Context, err error) {
	code, message := statusFor(err)
	response.Error(c, code, message, err)
}
