package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kenko/clinic-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ListMeta describes one page of a list response.
type ListMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ListResponse wraps list data
type ListResponse struct {
	Items interface{} `json:"items"`
	Meta  ListMeta    `json:"meta"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: StatusSuccess,
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
	}
}

// RespondWithSuccess sends a 200 success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// RespondWithCreated sends a 201 success response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

// RespondWithMessage sends a success response carrying only a message
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, &Response{Status: StatusSuccess, Message: message})
}

// RespondWithList sends a page of items
func RespondWithList(c *gin.Context, items interface{}, limit, offset, count int) {
	RespondWithSuccess(c, ListResponse{
		Items: items,
		Meta: ListMeta{
			Limit:  limit,
			Offset: offset,
			Count:  count,
		},
	})
}

// RespondWithError sends an error response and aborts the chain. Errors that
// are not *errors.AppError are reported as internal without their details.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.As(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), NewErrorResponse(appErr.Message))
}
