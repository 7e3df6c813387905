package responses

import (
	"github.com/gin-gonic/gin"

	"backend/internal/apperrors"
)

const internalMessage = "internal server error"

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Column  string `json:"column,omitempty"`
}

type APIResponse struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Fail writes err in the error envelope with the status its kind maps to.
// Unclassified errors are reported as Internal without their text.
func Fail(c *gin.Context, err error) {
	body := &ErrorBody{Kind: string(apperrors.Internal), Message: internalMessage}
	status := apperrors.HTTPStatus(apperrors.Internal)

	if appErr, ok := apperrors.As(err); ok && appErr.Kind != apperrors.Internal {
		body = &ErrorBody{
			Kind:    string(appErr.Kind),
			Message: appErr.Message,
			Column:  appErr.Column,
		}
		status = apperrors.HTTPStatus(appErr.Kind)
	}

	c.JSON(status, APIResponse{Error: body})
}

// Abort stops the handler chain with an error outside the engine's
// taxonomy, such as a rejected bearer token.
func Abort(c *gin.Context, statusCode int, kind, message string) {
	c.AbortWithStatusJSON(statusCode, APIResponse{
		Error: &ErrorBody{Kind: kind, Message: message},
	})
}
