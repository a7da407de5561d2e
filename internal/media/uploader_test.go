package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/filestorage"
)

var mediaIDRe = regexp.MustCompile(`^(img|vdo)_[a-z0-9]{8}$`)

type fakeStorage struct {
	uploads []filestorage.FileInfo
}

func (s *fakeStorage) Upload(file filestorage.FileInfo) (string, error) {
	s.uploads = append(s.uploads, file)
	return "https://cdn.test/" + file.Name + file.Extension, nil
}

func (s *fakeStorage) UploadMultiple(files []filestorage.FileInfo) ([]string, error) {
	var urls []string
	for _, file := range files {
		url, err := s.Upload(file)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *fakeStorage) GetFile(filename string) (*filestorage.FileInfo, error) {
	return nil, nil
}

func (s *fakeStorage) ResolveFile(filename, subfolder string, isTemp bool) (string, error) {
	return "", nil
}

type fakeMediaRepo struct {
	created []*models.Media
	videos  map[string]*models.Media
}

func (r *fakeMediaRepo) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	r.created = append(r.created, m)
	return m, nil
}

func (r *fakeMediaRepo) GetByID(ctx context.Context, id string) (*models.Media, error) {
	return nil, nil
}

func (r *fakeMediaRepo) UpdateByID(ctx context.Context, id string, m *models.Media) (*models.Media, error) {
	return m, nil
}

func (r *fakeMediaRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (r *fakeMediaRepo) List(ctx context.Context) ([]models.Media, error) { return nil, nil }

func (r *fakeMediaRepo) FindVideoBySourceImage(ctx context.Context, imageID string) (*models.Media, error) {
	return r.videos[imageID], nil
}

func (r *fakeMediaRepo) WithTx(tx *bun.Tx) repository.IMediaRepository { return r }
func (r *fakeMediaRepo) WithDB(db *bun.DB) repository.IMediaRepository { return r }

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUpload_ImageGetsLibraryRecord(t *testing.T) {
	storage := &fakeStorage{}
	repo := &fakeMediaRepo{}
	uploader := NewUploader(storage, repo)

	data := pngBytes(t, 64, 48)
	m, err := uploader.Upload(context.Background(), data, "result.png", "", nil)
	require.NoError(t, err)

	assert.Regexp(t, mediaIDRe, m.ID)
	assert.True(t, len(m.ID) > 4 && m.ID[:4] == "img_")
	assert.Equal(t, models.MediaTypeImage, m.Type)
	assert.Equal(t, "image/png", m.MimeType)
	assert.Equal(t, int64(len(data)), m.Size)
	require.NotNil(t, m.Width)
	require.NotNil(t, m.Height)
	assert.Equal(t, 64, *m.Width)
	assert.Equal(t, 48, *m.Height)
	assert.NotEmpty(t, m.URL)
	assert.Len(t, repo.created, 1)
}

func TestUpload_VideoPrefix(t *testing.T) {
	uploader := NewUploader(&fakeStorage{}, &fakeMediaRepo{})

	m, err := uploader.Upload(context.Background(), []byte("not really mp4"), "clip.mp4", "video/mp4", nil)
	require.NoError(t, err)

	assert.Regexp(t, mediaIDRe, m.ID)
	assert.Equal(t, "vdo_", m.ID[:4])
	assert.Equal(t, models.MediaTypeVideo, m.Type)
}

func TestUpload_RejectsNonMedia(t *testing.T) {
	uploader := NewUploader(&fakeStorage{}, &fakeMediaRepo{})

	_, err := uploader.Upload(context.Background(), []byte("plain text"), "notes.txt", "", nil)
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestUpload_WideImageGetsThumbnail(t *testing.T) {
	storage := &fakeStorage{}
	uploader := NewUploader(storage, &fakeMediaRepo{})

	m, err := uploader.Upload(context.Background(), pngBytes(t, 800, 200), "wide.png", "", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, m.ThumbnailURL)
	// Original plus the thumb rendition.
	assert.Len(t, storage.uploads, 2)
}

func TestUpload_SmallImageSkipsThumbnail(t *testing.T) {
	storage := &fakeStorage{}
	uploader := NewUploader(storage, &fakeMediaRepo{})

	m, err := uploader.Upload(context.Background(), pngBytes(t, 200, 200), "small.png", "", nil)
	require.NoError(t, err)

	assert.Empty(t, m.ThumbnailURL)
	assert.Len(t, storage.uploads, 1)
}

func TestUpload_SourceImageBackReference(t *testing.T) {
	repo := &fakeMediaRepo{}
	uploader := NewUploader(&fakeStorage{}, repo)

	m, err := uploader.Upload(context.Background(), []byte("mp4 bytes"), "clip.mp4", "video/mp4", &UploadOptions{
		SourceImageID: "img_ab12cd34",
	})
	require.NoError(t, err)
	assert.Equal(t, "img_ab12cd34", m.SourceImageID)
}

func TestStore_NoLibraryRecord(t *testing.T) {
	storage := &fakeStorage{}
	repo := &fakeMediaRepo{}
	uploader := NewUploader(storage, repo)

	url, err := uploader.Store(context.Background(), []byte("audio bytes"), "speech.mp3", "audio/mpeg")
	require.NoError(t, err)

	assert.NotEmpty(t, url)
	assert.Len(t, storage.uploads, 1)
	assert.Empty(t, repo.created)
}

func TestFindVideoBySource(t *testing.T) {
	repo := &fakeMediaRepo{videos: map[string]*models.Media{
		"img_aaaa1111": {ID: "vdo_bbbb2222", Type: models.MediaTypeVideo},
	}}
	uploader := NewUploader(&fakeStorage{}, repo)

	existing, err := uploader.FindVideoBySource(context.Background(), "img_aaaa1111")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "vdo_bbbb2222", existing.ID)

	missing, err := uploader.FindVideoBySource(context.Background(), "img_cccc3333")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
