package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RecoveryHandler answers a recovered panic with the 500 envelope.
// Use it with ginzap.CustomRecoveryWithZap, which logs the panic first.
func RecoveryHandler(c *gin.Context, _ any) {
	Error(c, http.StatusInternalServerError, 50000, "internal server error")
	c.Abort()
}
