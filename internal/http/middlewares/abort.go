package middlewares

import "github.com/gin-gonic/gin"

// abortJSON writes the same error envelope the handlers use.
func abortJSON(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id != "" {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
