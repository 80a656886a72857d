package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/justicia-digital/exhorto-interchange/internal/exerr"
)

// BlobStore is the contract the engine needs from object storage: upload a
// document, fetch it back by its durable URL, and delete it. Implementations
// must be safe for concurrent use.
type BlobStore interface {
	Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, blobURL string) ([]byte, error)
	Delete(ctx context.Context, blobURL string) error
}

// GCSStore implements BlobStore over Google Cloud Storage. Objects get
// durable public-style URLs of the form
// https://storage.googleapis.com/<bucket>/<object>.
type GCSStore struct {
	client *gcs.Client
}

// Close releases the underlying client.
func (s *GCSStore) Close() error { return s.client.Close() }

// NewGCSStore builds a store. An empty credentialsFile uses Application
// Default Credentials.
func NewGCSStore(ctx context.Context, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Upload writes data to bucket/name and returns the durable URL.
func (s *GCSStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	if bucket == "" {
		return "", exerr.Wrap(exerr.MissingConfiguration, "bucket de almacenamiento sin configurar")
	}
	obj := s.client.Bucket(bucket).Object(name)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", exerr.Wrapf(exerr.Upload, "falla al subir %s a %s: %v", name, bucket, err)
	}
	if err := w.Close(); err != nil {
		if errors.Is(err, gcs.ErrBucketNotExist) {
			return "", exerr.Wrapf(exerr.BucketNotFound, "no existe el bucket %s", bucket)
		}
		return "", exerr.Wrapf(exerr.Upload, "falla al cerrar el escritor de %s: %v", name, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, name), nil
}

// Fetch downloads the blob a durable URL points at.
func (s *GCSStore) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	bucket, name, err := splitBlobURL(blobURL)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		switch {
		case errors.Is(err, gcs.ErrObjectNotExist):
			return nil, exerr.Wrapf(exerr.FileNotFound, "no existe el archivo %s", name)
		case errors.Is(err, gcs.ErrBucketNotExist):
			return nil, exerr.Wrapf(exerr.BucketNotFound, "no existe el bucket %s", bucket)
		default:
			return nil, exerr.Wrapf(exerr.Upload, "falla al abrir %s: %v", name, err)
		}
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, exerr.Wrapf(exerr.Upload, "falla al leer %s: %v", name, err)
	}
	return data, nil
}

// Delete removes the blob a durable URL points at. Deleting an absent blob
// is not an error.
func (s *GCSStore) Delete(ctx context.Context, blobURL string) error {
	bucket, name, err := splitBlobURL(blobURL)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(bucket).Object(name).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return exerr.Wrapf(exerr.Upload, "falla al borrar %s: %v", name, err)
	}
	return nil
}

// splitBlobURL extracts bucket and object name from a durable URL.
func splitBlobURL(blobURL string) (bucket, name string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil || u.Host == "" {
		return "", "", exerr.Wrapf(exerr.NotValidParam, "URL de almacenamiento inválida: %q", blobURL)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", exerr.Wrapf(exerr.NotValidParam, "URL de almacenamiento inválida: %q", blobURL)
	}
	return parts[0], parts[1], nil
}
