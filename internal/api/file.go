package api

import (
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/secondbreakfast/conductor/internal/app"
	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/filestorage"
)

// GetFile serves stored assets when the local filesystem backend is
// active. With S3 the media URLs point at the bucket and this handler
// streams the object through as a fallback.
func GetFile(c *gin.Context) {
	filename := c.Param("filename")
	app := c.MustGet("app").(*app.App)

	storage, err := filestorage.NewFileStorage(app.Config())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if app.Config().Filesystem == config.FilesystemLocal {
		file, err := storage.ResolveFile(filename, "", false)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "file not found"})
			return
		}

		c.File(file)
		return
	}

	file, err := storage.GetFile(filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "file not found"})
		return
	}

	c.Data(http.StatusOK, mimetype.Detect(file.Content).String(), file.Content)
}
