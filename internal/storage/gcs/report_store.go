// Package gcs archives rendered audit reports in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

const (
	defaultContentType = "application/octet-stream"
	reportCacheControl = "private, max-age=0, no-transform"
)

// Config names the bucket reports are archived in.
type Config struct {
	Bucket string
}

// ReportStore implements audit.BlobStore on a GCS bucket. Objects are written
// as downloadable attachments named after the last path segment, so a signed
// or console link saves as audit-report-<host>.pdf.
type ReportStore struct {
	bucket *storage.BucketHandle
	name   string
}

// New creates a ReportStore for cfg.Bucket.
func New(client *storage.Client, cfg Config) (*ReportStore, error) {
	if client == nil {
		return nil, errors.New("gcs: storage client is required")
	}
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	return &ReportStore{bucket: client.Bucket(name), name: name}, nil
}

// PutObject uploads one report and returns its gs:// URI. An empty contentType
// is inferred from the object extension.
func (s *ReportStore) PutObject(ctx context.Context, objectPath string, contentType string, r io.Reader) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	if key == "" {
		return "", errors.New("gcs: object path is required")
	}

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = resolveContentType(key, contentType)
	w.ContentDisposition = attachment(key)
	w.CacheControl = reportCacheControl

	if _, err := io.Copy(w, r); err != nil {
		return "", errors.Join(fmt.Errorf("gcs: upload %s: %w", key, err), w.Close())
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: finalize %s: %w", key, err)
	}
	return "gs://" + s.name + "/" + key, nil
}

func resolveContentType(key, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if byExt := mime.TypeByExtension(path.Ext(key)); byExt != "" {
		return byExt
	}
	return defaultContentType
}

func attachment(key string) string {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)})
	if disposition == "" {
		return "attachment"
	}
	return disposition
}
