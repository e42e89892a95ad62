package common

import "github.com/gin-gonic/gin"

// The API speaks the same plain shapes the frontend always consumed:
// errors are {"error": msg}, successes carry their documented payload.

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
