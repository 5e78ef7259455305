package handlers

import (
	"errors"
	"net/http"

	"github.com/arnavshah/limits-settings-go/pkg/editor"
	"github.com/arnavshah/limits-settings-go/pkg/limits"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/arnavshah/limits-settings-go/pkg/session"
	"github.com/arnavshah/limits-settings-go/pkg/validation"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

// respondError maps an editor error onto a status code and the error envelope
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var rejected *validation.RejectedError
	status, code := http.StatusInternalServerError, "internal"
	resp := errorResponse{Error: err.Error()}

	switch {
	case errors.As(err, &rejected):
		status, code = http.StatusConflict, validation.ErrorKind(err)
		resp.Details = rejected.Violations
	case errors.Is(err, validation.ErrValidatorFailed):
		status, code = http.StatusBadGateway, validation.ErrorKind(err)
	case errors.Is(err, validation.ErrPersistence):
		status, code = http.StatusInternalServerError, validation.ErrorKind(err)
	case errors.Is(err, validation.ErrValidationInProgress):
		status, code = http.StatusConflict, "ValidationInProgress"
	case errors.Is(err, models.ErrInvalidLimit):
		status, code = http.StatusUnprocessableEntity, "InvalidLimit"
	case errors.Is(err, limits.ErrLimitNotFound):
		status, code = http.StatusNotFound, "LimitNotFound"
	case errors.Is(err, session.ErrSessionBusy):
		status, code = http.StatusConflict, "SessionBusy"
	case errors.Is(err, session.ErrInvalidTransition):
		status, code = http.StatusConflict, "InvalidTransition"
	case errors.Is(err, editor.ErrNoPendingDeletion):
		status, code = http.StatusConflict, "NoPendingDeletion"
	case errors.Is(err, editor.ErrUnsupported):
		status, code = http.StatusBadRequest, "Unsupported"
	}
	if status == http.StatusInternalServerError && code == "internal" {
		resp.Error = "internal error"
	}

	resp.Code = code
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "BadRequest"})
}
