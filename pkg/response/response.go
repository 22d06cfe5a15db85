package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Response is the JSON envelope every HTTP endpoint answers with.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success sends a 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Error aborts the request with an error envelope.
func Error(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, Response{
		Error: &ErrorInfo{Code: code, Message: message},
	})
}

// Status aborts with statusCode, deriving the error code from the status
// text ("Not Found" becomes "NOT_FOUND"). Used when relaying a status
// decided by someone else.
func Status(c *gin.Context, statusCode int, message string) {
	Error(c, statusCode, CodeFor(statusCode), message)
}

// CodeFor returns the upper snake case form of the status text.
func CodeFor(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "ERROR"
	}
	text = strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text)
	return strings.ToUpper(text)
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func RangeNotSatisfiable(c *gin.Context, message string) {
	Error(c, http.StatusRequestedRangeNotSatisfiable, "RANGE_NOT_SATISFIABLE", message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
