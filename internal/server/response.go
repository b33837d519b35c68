package server

import "github.com/gin-gonic/gin"

// APIResponse is the uniform envelope for every JSON endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// respondSuccess writes a success envelope.
func respondSuccess(c *gin.Context, httpStatus int, data any, message string) {
	if message == "" {
		message = "ok"
	}

	c.JSON(httpStatus, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Code:    httpStatus,
	})
}

// respondError writes a failure envelope.
func respondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Data:    nil,
		Message: message,
		Code:    httpStatus,
	})
}
