package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Progress returns a handler for GET /progress.
func Progress(src StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Progress())
	}
}
