package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secondbreakfast/conductor/internal/app"
	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/types"
)

type PromptParams struct {
	Position         int              `json:"position"`
	EndpointType     string           `json:"endpoint_type"`
	SelectedProvider string           `json:"selected_provider"`
	SelectedModel    string           `json:"selected_model"`
	SystemPrompt     string           `json:"system_prompt"`
	Tools            []map[string]any `json:"tools"`

	BackgroundPrompt     string   `json:"background_prompt"`
	ForegroundPrompt     string   `json:"foreground_prompt"`
	NegativePrompt       string   `json:"negative_prompt"`
	Seed                 *int64   `json:"seed"`
	LightSourceDirection string   `json:"light_source_direction"`
	LightSourceStrength  *float64 `json:"light_source_strength"`
	PreserveSubject      bool     `json:"preserve_subject"`
	DurationSeconds      *int     `json:"duration_seconds"`
}

func (p *PromptParams) validate() string {
	if !types.ValidEndpointType(p.EndpointType) {
		return "unknown endpoint_type"
	}
	if !types.ValidProvider(p.SelectedProvider) {
		return "unknown selected_provider"
	}
	return ""
}

func (p *PromptParams) apply(prompt *models.Prompt) {
	prompt.Position = p.Position
	prompt.EndpointType = p.EndpointType
	prompt.SelectedProvider = p.SelectedProvider
	prompt.SelectedModel = p.SelectedModel
	prompt.SystemPrompt = p.SystemPrompt
	prompt.Tools = p.Tools
	prompt.BackgroundPrompt = p.BackgroundPrompt
	prompt.ForegroundPrompt = p.ForegroundPrompt
	prompt.NegativePrompt = p.NegativePrompt
	prompt.Seed = p.Seed
	prompt.LightSourceDirection = p.LightSourceDirection
	prompt.LightSourceStrength = p.LightSourceStrength
	prompt.PreserveSubject = p.PreserveSubject
	prompt.DurationSeconds = p.DurationSeconds
}

func CreatePrompt(c *gin.Context) {
	var params PromptParams
	if err := c.BindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse request body"})
		return
	}

	if msg := params.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	app := c.MustGet("app").(*app.App)

	flow, err := app.FlowRepository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "flow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	prompt := models.NewPrompt(flow.ID)
	params.apply(prompt)

	created, err := app.PromptRepository.Create(c.Request.Context(), prompt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": created})
}

func UpdatePrompt(c *gin.Context) {
	var params PromptParams
	if err := c.BindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse request body"})
		return
	}

	if msg := params.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	app := c.MustGet("app").(*app.App)

	prompt, err := app.PromptRepository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "prompt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	params.apply(prompt)

	updated, err := app.PromptRepository.UpdateByID(c.Request.Context(), prompt.ID.String(), prompt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": updated})
}

func DeletePrompt(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	if _, err := app.PromptRepository.GetByID(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "prompt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if err := app.PromptRepository.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
