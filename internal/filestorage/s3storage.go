package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/secondbreakfast/conductor/internal/config"
)

type S3FileStorage struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3FileStorage(cfg *config.Config) (*S3FileStorage, error) {
	if cfg.S3 == nil {
		return nil, fmt.Errorf("s3 config is not set")
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")
	awsCfg, err := awsConfig.LoadDefaultConfig(
		context.TODO(),
		awsConfig.WithRegion(cfg.S3.Region),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = &cfg.S3.Endpoint
		}
	})

	return &S3FileStorage{
		client: s3Client,
		cfg:    cfg.S3,
	}, nil
}

func (u *S3FileStorage) Upload(file FileInfo) (string, error) {
	if len(file.Content) == 0 {
		return "", ErrEmptyContent
	}

	var key string
	if file.IsTemp {
		key = fmt.Sprintf("%s/%s%s", "temp", file.Name, file.Extension)
	} else {
		folder := strings.TrimSuffix(u.cfg.Folder, "/")
		key = fmt.Sprintf("%s/%s%s", folder, file.Name, file.Extension)
	}

	mtype := file.MimeType
	if mtype == "" {
		mtype = mimetype.Detect(file.Content).String()
	}

	// All uploads are publicly readable; the media library serves the
	// returned URLs directly to dashboard clients.
	input := s3.PutObjectInput{
		Key:         &key,
		ContentType: &mtype,
		Bucket:      &u.cfg.Bucket,
		Body:        bytes.NewReader(file.Content),
		ACL:         types.ObjectCannedACLPublicRead,
	}
	if _, err := u.client.PutObject(context.TODO(), &input); err != nil {
		return "", err
	}

	return u.publicURL(key)
}

func (u *S3FileStorage) publicURL(key string) (string, error) {
	if u.cfg.PublicUrl != "" {
		publicUrl := strings.TrimSuffix(u.cfg.PublicUrl, "/")
		return fmt.Sprintf("%s/%s", publicUrl, key), nil
	}

	// Infer the URL for providers whose layout we know.
	switch {
	case strings.Contains(u.cfg.Endpoint, "digitaloceanspaces.com"):
		return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", u.cfg.Bucket, u.cfg.Region, key), nil

	case strings.Contains(u.cfg.Endpoint, "amazonaws.com"):
		endpoint := strings.TrimPrefix(u.cfg.Endpoint, "https://")
		endpoint = strings.TrimSuffix(endpoint, "/")
		return fmt.Sprintf("https://%s.%s/%s", u.cfg.Bucket, endpoint, key), nil

	case u.cfg.Endpoint == "":
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key), nil

	default:
		return "", fmt.Errorf("cannot infer public URL for endpoint %s; set s3.public_url", u.cfg.Endpoint)
	}
}

func (u *S3FileStorage) UploadMultiple(files []FileInfo) ([]string, error) {
	var uploadedFiles []string
	for _, file := range files {
		destination, err := u.Upload(file)
		if err != nil {
			return nil, err
		}

		uploadedFiles = append(uploadedFiles, destination)
	}

	return uploadedFiles, nil
}

func (u *S3FileStorage) GetFile(filename string) (*FileInfo, error) {
	ctx := context.TODO()

	folder := strings.TrimSuffix(u.cfg.Folder, "/")
	key := fmt.Sprintf("%s/%s", folder, filename)

	params := &s3.GetObjectInput{
		Bucket: &u.cfg.Bucket,
		Key:    &key,
	}

	object, err := u.client.GetObject(ctx, params)
	if err != nil {
		return nil, err
	}
	defer object.Body.Close()

	content := bytes.NewBuffer(nil)
	if _, err := content.ReadFrom(object.Body); err != nil {
		return nil, err
	}

	return &FileInfo{
		Name:      filename,
		Extension: filepath.Ext(filename),
		Content:   content.Bytes(),
	}, nil
}

func (u *S3FileStorage) ResolveFile(filename string, subfolder string, isTemp bool) (string, error) {
	return "", fmt.Errorf("s3 storage does not serve local paths")
}
