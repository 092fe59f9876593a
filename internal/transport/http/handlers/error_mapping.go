package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Andiquis/xQor3/internal/infra/logger"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message echoes the error text.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// serviceErrorCases is consulted in order; typed errors are unwrapped before it.
var serviceErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrAccountLocked, Status: http.StatusUnauthorized},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusUnauthorized, Message: "account is deactivated"},
	{Err: usecase.ErrExpiredAccessToken, Status: http.StatusUnauthorized, Message: "access token expired"},
	{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "invalid access token"},
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound},
	{Err: usecase.ErrConflict, Status: http.StatusConflict},
	{Err: usecase.ErrRegistrationFailed, Status: http.StatusBadRequest, Message: "registration failed"},
}

// RespondWithServiceError maps a service error onto the error envelope.
func RespondWithServiceError(c *gin.Context, err error) {
	var verr *usecase.ValidationError
	if errors.As(err, &verr) {
		respondValidation(c, verr.Messages)
		return
	}
	RespondWithMappedError(c, err, serviceErrorCases, http.StatusInternalServerError, "internal server error")
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Fallbacks are logged with the full error; clients only see fallbackMessage.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			msg := cs.Message
			if msg == "" {
				msg = err.Error()
			}
			c.JSON(cs.Status, NewErrorResponse(c, cs.Status, msg))
			return
		}
	}

	logger.WithContext(c.Request.Context()).Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackStatus, fallbackMessage))
}

func respondValidation(c *gin.Context, messages []string) {
	if len(messages) == 0 {
		messages = []string{"invalid request"}
	}
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, http.StatusBadRequest, messages))
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, http.StatusBadRequest, message))
}
