package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secondbreakfast/conductor/internal/app"
)

// UploadMedia stores an uploaded file and registers it in the media
// library. The media id in the response is the stable reference runs
// use in input_media_ids.
func UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to parse request body"})
		return
	}

	content, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to open file"})
		return
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to read file"})
		return
	}

	app := c.MustGet("app").(*app.App)

	media, err := app.Uploader().Upload(c.Request.Context(), data, file.Filename, "", nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": media})
}

func ListMedia(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	media, err := app.MediaRepository.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": media})
}

func GetMedia(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	media, err := app.MediaRepository.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "media not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": media})
}
