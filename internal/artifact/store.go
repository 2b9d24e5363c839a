// Package artifact opens build artifacts from the local file system or S3.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/config"
	"github.com/savaki/sc-packager/internal/errors"
)

// Store supplies the bytes of a named artifact
type Store interface {
	// Open returns a stream over the artifact at location. Failures wrap errors.ErrRead.
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FileStore reads artifacts from the local file system
type FileStore struct{}

// Open implements Store
func (FileStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrRead, err)
	}
	return f, nil
}

// S3API is the subset of the S3 client used to read artifacts
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads artifacts addressed as s3://bucket/key
type S3Store struct {
	client S3API
}

// NewS3Store creates an S3 backed store
func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

// Open implements Store
func (s *S3Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrRead, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("s3_bucket", bucket).
		Str("s3_key", key).
		Msg("opening artifact")

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download s3://%s/%s: %w", errors.ErrRead, bucket, key, err)
	}
	return output.Body, nil
}

// ParseS3URI splits s3://bucket/key into its bucket and key
func ParseS3URI(location string) (bucket, key string, err error) {
	if !config.IsS3URI(location) {
		return "", "", fmt.Errorf("invalid s3 uri: %s", location)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri: %s, expected s3://{bucket}/{key}", location)
	}
	return bucket, key, nil
}

// Mux dispatches s3:// locations to an S3 store and everything else to the
// file system.
type Mux struct {
	files FileStore
	s3    Store
}

// NewMux creates a Mux. s3Store may be nil when S3 artifacts are not expected.
func NewMux(s3Store Store) *Mux {
	return &Mux{s3: s3Store}
}

// Open implements Store
func (m *Mux) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if config.IsS3URI(location) {
		if m.s3 == nil {
			return nil, fmt.Errorf("%w: no s3 store configured for %s", errors.ErrRead, location)
		}
		return m.s3.Open(ctx, location)
	}
	return m.files.Open(ctx, location)
}
