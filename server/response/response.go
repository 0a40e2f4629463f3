package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// JSON writes the standard response envelope. err may be nil for success
// responses.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	var errMessage string
	if err != nil {
		errMessage = err.Error()
	}
	c.JSON(status, gin.H{
		"message":   message,
		"data":      data,
		"errors":    errMessage,
		"status":    http.StatusText(status),
		"timestamp": time.Now().Format("2006-01-02 15:04:05"),
	})
}
