package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secondbreakfast/conductor/internal/app"
)

// ListModels serves the model catalog the dashboard's prompt editor
// reads. An empty provider query returns every provider's models.
func ListModels(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	models, err := app.Catalog.List(c.Request.Context(), c.Query("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": models})
}
