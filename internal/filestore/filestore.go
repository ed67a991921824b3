// Package filestore issues upload handles for and deletes objects in an
// S3-compatible bucket.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/teris-io/shortid"
)

const (
	DefaultFolder    = "uploads/chatrooms"
	DefaultFileName  = "image.jpg"
	uploadURLExpires = 15 * time.Minute
)

// Folders are the prefixes clients may upload into.
var Folders = []string{DefaultFolder, "uploads/messages", "uploads/profiles"}

var ErrInvalidFolder = errors.New("invalid upload folder")

// ValidFolder reports whether folder is empty (the default) or one of Folders.
func ValidFolder(folder string) bool {
	return folder == "" || slices.Contains(Folders, strings.Trim(folder, "/"))
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

type Upload struct {
	Key       string
	UploadURL string
}

type MinioStore struct {
	cfg    Config
	client *minio.Client
	newId  func() (string, error)
	now    func() time.Time
}

func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioStore{
		cfg:    cfg,
		client: cl,
		newId:  shortid.Generate,
		now:    time.Now,
	}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}

	return nil
}

// Put reserves a key under folder and returns a presigned URL the client
// uses to upload the object directly. The signature covers contentType, so
// the upload must send the same Content-Type header.
func (s *MinioStore) Put(ctx context.Context, folder, fileName, contentType string) (Upload, error) {
	if !ValidFolder(folder) {
		return Upload{}, fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}

	key, err := s.objectKey(folder, fileName)
	if err != nil {
		return Upload{}, err
	}

	var headers http.Header
	if contentType != "" {
		headers = http.Header{"Content-Type": {contentType}}
	}

	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.cfg.Bucket, key, uploadURLExpires, url.Values{}, headers)
	if err != nil {
		return Upload{}, fmt.Errorf("presign put: %w", err)
	}

	return Upload{Key: key, UploadURL: u.String()}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}

	return nil
}

// objectKey builds folder/<id>_<unix millis><ext>.
func (s *MinioStore) objectKey(folder, fileName string) (string, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	if fileName == "" {
		fileName = DefaultFileName
	}

	id, err := s.newId()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	name := fmt.Sprintf("%s_%d%s", id, s.now().UnixMilli(), path.Ext(fileName))

	return path.Join(strings.Trim(folder, "/"), name), nil
}
