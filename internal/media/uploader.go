package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"github.com/gabriel-vasile/mimetype"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/filestorage"
	"github.com/secondbreakfast/conductor/internal/utils/hashutil"
	"github.com/secondbreakfast/conductor/internal/utils/randutil"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	imageIDPrefix = "img"
	videoIDPrefix = "vdo"

	mediaIDLength = 8

	// Images wider than this get a thumb/ rendition for the dashboard.
	thumbnailWidth = 512
)

var ErrUnsupportedMediaType = errors.New("media library accepts images and videos only")

type UploadOptions struct {
	// SourceImageID back-references the image a video was generated
	// from, so batch video generation can skip already-processed images.
	SourceImageID string
}

// Uploader puts binary outputs into object storage and registers them
// in the media library.
type Uploader struct {
	storage filestorage.FileStorage
	media   repository.IMediaRepository
}

func NewUploader(storage filestorage.FileStorage, media repository.IMediaRepository) *Uploader {
	return &Uploader{
		storage: storage,
		media:   media,
	}
}

// Upload stores data and inserts a Media row. The row id is prefixed
// img_ or vdo_ by the sniffed type; anything that is neither an image
// nor a video is rejected.
func (u *Uploader) Upload(ctx context.Context, data []byte, filename string, mimeType string, opts *UploadOptions) (*models.Media, error) {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	var mediaType models.MediaType
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		mediaType = models.MediaTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		mediaType = models.MediaTypeVideo
	default:
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedMediaType, mimeType)
	}

	id, err := newMediaID(mediaType)
	if err != nil {
		return nil, err
	}

	url, err := u.put(data, filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	media := &models.Media{
		ID:       id,
		Type:     mediaType,
		Filename: filename,
		URL:      url,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}
	if opts != nil {
		media.SourceImageID = opts.SourceImageID
	}

	if mediaType == models.MediaTypeImage {
		u.probeAndThumbnail(media, data)
	}

	return u.media.Create(ctx, media)
}

// Store puts bytes into storage and returns the public URL without
// registering a library record. Audio outputs use this.
func (u *Uploader) Store(ctx context.Context, data []byte, filename string, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	return u.put(data, filename, mimeType)
}

// FindVideoBySource returns the library video generated from the given
// image, or nil when none exists.
func (u *Uploader) FindVideoBySource(ctx context.Context, imageID string) (*models.Media, error) {
	return u.media.FindVideoBySourceImage(ctx, imageID)
}

func (u *Uploader) put(data []byte, filename string, mimeType string) (string, error) {
	file := filestorage.NewFileInfo(storageKey(data), extensionFor(filename, data), data, mimeType)
	return u.storage.Upload(file)
}

// probeAndThumbnail fills in image dimensions and, for images wider
// than the thumbnail width, stores a downscaled rendition. A media row
// without dimensions is still valid; probe failures are not fatal.
func (u *Uploader) probeAndThumbnail(media *models.Media, data []byte) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return
	}

	media.Width = &cfg.Width
	media.Height = &cfg.Height

	if cfg.Width <= thumbnailWidth {
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}

	height := cfg.Height * thumbnailWidth / cfg.Width
	resized := transform.Resize(img, thumbnailWidth, height, transform.Linear)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return
	}

	thumb := filestorage.NewFileInfo("thumb/"+storageKey(buf.Bytes()), ".jpg", buf.Bytes(), "image/jpeg")
	url, err := u.storage.Upload(thumb)
	if err != nil {
		return
	}

	media.ThumbnailURL = url
}

func newMediaID(mediaType models.MediaType) (string, error) {
	prefix := imageIDPrefix
	if mediaType == models.MediaTypeVideo {
		prefix = videoIDPrefix
	}

	suffix, err := randutil.LowerAlphaNumString(mediaIDLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s_%s", prefix, suffix), nil
}

// storageKey builds a collision-free object name: upload timestamp plus
// a content hash fragment.
func storageKey(data []byte) string {
	hash := hashutil.Blake3Hash(data)
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), hash[:8])
}

func extensionFor(filename string, data []byte) string {
	if ext := filepath.Ext(filename); ext != "" {
		return ext
	}

	return mimetype.Detect(data).Extension()
}
