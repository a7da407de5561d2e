package filestorage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/secondbreakfast/conductor/internal/config"
)

var ErrEmptyContent = errors.New("file content is empty")

type FileInfo struct {
	Name      string
	Extension string
	Content   []byte
	MimeType  string
	IsTemp    bool
}

type FileStorage interface {
	Upload(file FileInfo) (string, error)
	UploadMultiple(files []FileInfo) ([]string, error)
	GetFile(filename string) (*FileInfo, error)
	ResolveFile(filename string, subfolder string, isTemp bool) (string, error)
}

func NewFileInfo(name string, extension string, content []byte, mimeType string) FileInfo {
	return FileInfo{
		Name:      name,
		Extension: extension,
		Content:   content,
		MimeType:  mimeType,
	}
}

func NewFileStorage(cfg *config.Config) (FileStorage, error) {
	filesystem := strings.ToLower(cfg.Filesystem)

	if filesystem == config.FilesystemLocal {
		return NewLocalFileStorage(cfg)
	} else if filesystem == config.FilesystemS3 {
		return NewS3FileStorage(cfg)
	}

	return nil, fmt.Errorf("invalid filesystem type %s", cfg.Filesystem)
}
