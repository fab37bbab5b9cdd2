package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig holds the settings needed to reach an S3 compatible store
type ObjectConfig struct {
	// Endpoint is host:port, e.g. "localhost:9000" for a local MinIO
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is only needed by region-aware backends such as AWS S3
	Region string
}

// MinIOStore uploads documents with a single PutObject call, which S3
// applies atomically. It is safe for concurrent use.
type MinIOStore struct {
	client *miniogo.Client
}

// NewMinIOStore creates a client for cfg. No request is sent until Put.
func NewMinIOStore(_ context.Context, cfg *ObjectConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: object store endpoint is required", ErrInvalidTarget)
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &Error{Kind: ErrKindConnectionFailed, Op: "create object store client", Err: err}
	}

	return &MinIOStore{client: client}, nil
}

// Put uploads data to location, given as "bucket/key"
func (s *MinIOStore) Put(ctx context.Context, location string, data []byte) error {
	bucket, key, ok := strings.Cut(location, "/")
	if !ok || bucket == "" || key == "" {
		return fmt.Errorf("%w: %q must be bucket/key", ErrInvalidTarget, location)
	}

	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return mapError(err, "put s3://"+location)
	}
	return nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".toml"):
		return "application/toml"
	case strings.HasSuffix(key, ".yaml"), strings.HasSuffix(key, ".yml"):
		return "application/yaml"
	case strings.HasSuffix(key, ".md"):
		return "text/markdown"
	}
	return "application/octet-stream"
}

// ErrKind categorises an object store failure
type ErrKind int

const (
	ErrKindUnknown ErrKind = iota
	ErrKindNotFound
	ErrKindConnectionFailed
	ErrKindTimeout
	ErrKindPermissionDenied
	ErrKindInvalidInput
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error wraps an SDK error with its kind
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// mapError translates a MinIO SDK error into an *Error
func mapError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: ErrKindTimeout, Op: op, Err: err}
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket":
			return &Error{Kind: ErrKindNotFound, Op: op, Err: err}
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return &Error{Kind: ErrKindPermissionDenied, Op: op, Err: err}
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
			return &Error{Kind: ErrKindInvalidInput, Op: op, Err: err}
		case "RequestTimeout", "SlowDown":
			return &Error{Kind: ErrKindTimeout, Op: op, Err: err}
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return &Error{Kind: ErrKindNotFound, Op: op, Err: err}
		case http.StatusForbidden, http.StatusUnauthorized:
			return &Error{Kind: ErrKindPermissionDenied, Op: op, Err: err}
		case http.StatusBadRequest:
			return &Error{Kind: ErrKindInvalidInput, Op: op, Err: err}
		}
	}

	return &Error{Kind: ErrKindConnectionFailed, Op: op, Err: err}
}
