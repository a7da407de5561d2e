package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/secondbreakfast/conductor/internal/app"
	"github.com/secondbreakfast/conductor/internal/db/models"
)

type CreateRunParams struct {
	FlowID         string         `json:"flow_id"`
	Message        string         `json:"message"`
	Variables      map[string]any `json:"variables"`
	AttachmentURLs []string       `json:"attachment_urls"`
	InputMediaIDs  []string       `json:"input_media_ids"`
	WebhookURL     string         `json:"webhook_url"`
}

type RerunParams struct {
	FlowID string `json:"flow_id"`
}

// CreateRun inserts a pending run and queues it for execution. The
// response is a 202: the run executes asynchronously and reports
// through its webhook or polling.
func CreateRun(c *gin.Context) {
	var params CreateRunParams
	if err := c.BindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse request body"})
		return
	}

	flowID, err := uuid.Parse(params.FlowID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "flow_id is required"})
		return
	}

	app := c.MustGet("app").(*app.App)

	if _, err := app.FlowRepository.GetByID(c.Request.Context(), flowID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "flow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	run := models.NewRun(flowID)
	run.Message = params.Message
	run.Variables = params.Variables
	run.AttachmentURLs = params.AttachmentURLs
	run.InputMediaIDs = params.InputMediaIDs
	run.WebhookURL = params.WebhookURL

	created, err := app.RunRepository.Create(c.Request.Context(), run)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if err := app.Processor.Enqueue(c.Request.Context(), created.ID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to queue run: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "ok", "data": created})
}

func GetRun(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	run, err := app.RunRepository.GetWithPromptRuns(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": run})
}

func ListRuns(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	var (
		runs []models.Run
		err  error
	)
	if flowID := c.Query("flow_id"); flowID != "" {
		runs, err = app.RunRepository.ListByFlowID(c.Request.Context(), flowID)
	} else {
		runs, err = app.RunRepository.List(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": runs})
}

// RerunRun creates a fresh run carrying the source run's message,
// variables and attachments. The optional flow_id in the body retargets
// the rerun at a different flow; the source run is never mutated.
func RerunRun(c *gin.Context) {
	var params RerunParams
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse request body"})
			return
		}
	}

	app := c.MustGet("app").(*app.App)

	source, err := app.RunRepository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	flowID := source.FlowID
	if params.FlowID != "" {
		override, err := uuid.Parse(params.FlowID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid flow_id"})
			return
		}
		if _, err := app.FlowRepository.GetByID(c.Request.Context(), override.String()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"message": "flow not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		flowID = override
	}

	rerun := models.NewRun(flowID)
	rerun.SourceRunID = &source.ID
	rerun.Message = source.Message
	rerun.Variables = source.Variables
	rerun.AttachmentURLs = source.AttachmentURLs
	rerun.InputMediaIDs = source.InputMediaIDs
	rerun.WebhookURL = source.WebhookURL

	created, err := app.RunRepository.Create(c.Request.Context(), rerun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if err := app.Processor.Enqueue(c.Request.Context(), created.ID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to queue run: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "ok", "data": created})
}

// ExecuteRunSync drives the run to a terminal state on the request
// goroutine. Already-terminal runs report their stored outcome without
// re-executing.
func ExecuteRunSync(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	outcome, err := app.Runner.ExecuteRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": outcome.Status, "data": outcome.Data})
}
