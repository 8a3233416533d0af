package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GCSStore stores blobs in a Google Cloud Storage bucket. The object path is
// the store's stable id.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS-backed blob store. If credsPath is empty,
// application default credentials are used.
func NewGCSStore(ctx context.Context, bucket, credsPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

// Upload writes the bytes to bucket/folder/<fresh-id><ext> and returns the
// object path as the blob id.
func (s *GCSStore) Upload(ctx context.Context, r io.Reader, folder, filename, contentType string) (Object, error) {
	ext := strings.ToLower(path.Ext(filename))
	objectPath := path.Join(folder, uuid.NewString()+ext)

	wc := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // disable chunking for small files

	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return Object{}, fmt.Errorf("failed to upload blob: %w", err)
	}
	if err := wc.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to finalize blob upload: %w", err)
	}

	return Object{ID: objectPath, URL: s.publicURL(objectPath)}, nil
}

// Delete removes the object. Deleting an already-gone object is not an error.
func (s *GCSStore) Delete(ctx context.Context, id string) error {
	err := s.client.Bucket(s.bucket).Object(id).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) publicURL(objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectPath)
}

var _ Store = (*GCSStore)(nil)
