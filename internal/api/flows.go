// Package api holds the gin handlers behind /api/v1. Handlers pull
// the app container out of the request context; routing and
// middleware wiring live in internal/server.
package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secondbreakfast/conductor/internal/app"
	"github.com/secondbreakfast/conductor/internal/db/models"
)

type CreateFlowParams struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func CreateFlow(c *gin.Context) {
	var params CreateFlowParams
	if err := c.BindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse request body"})
		return
	}

	if params.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name is required"})
		return
	}

	app := c.MustGet("app").(*app.App)
	flow, err := app.FlowRepository.Create(c.Request.Context(), models.NewFlow(params.Name, params.Slug, params.Description))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": flow})
}

func ListFlows(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	flows, err := app.FlowRepository.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": flows})
}

func GetFlow(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	flow, err := app.FlowRepository.GetWithPrompts(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "flow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": flow})
}

// DeleteFlow removes the flow and its prompts. Runs keep their rows;
// they reference the flow id without owning it.
func DeleteFlow(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	if _, err := app.FlowRepository.GetByID(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "flow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if err := app.FlowRepository.DeleteWithPrompts(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
