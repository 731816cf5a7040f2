package gcsexport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectWriter stores a blob under bucket/object.
type ObjectWriter interface {
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// GCSWriter writes objects to Google Cloud Storage. It uses Application
// Default Credentials.
type GCSWriter struct {
	client *storage.Client
}

// NewGCSWriter creates a storage client.
func NewGCSWriter(ctx context.Context) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSWriter{client: client}, nil
}

// WriteObject uploads data, replacing any object with the same name.
func (g *GCSWriter) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("WriteObject: write %s/%s: %w", bucket, object, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("WriteObject: finalize %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Close releases the storage client.
func (g *GCSWriter) Close() error {
	return g.client.Close()
}

// ObjectURI renders a gs:// URI.
func ObjectURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(object, "/")
}

var _ ObjectWriter = (*GCSWriter)(nil)
