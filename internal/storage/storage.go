// Package storage provides blob storage for deliverable binaries.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development
// - S3Storage: S3-compatible object storage for production
//
// Handlers use the high-level Save helper, which generates a durable
// locator for the deliverable and detects the content type; the lower
// level Put/Get/Delete/URL/Exists operations back it.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for deliverable blob operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Save stores a deliverable binary under a freshly generated locator
	// and returns the stored object's locator, size and content type.
	Save(ctx context.Context, params SaveParams) (StoredObject, error)

	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key already exists and overwrite is
	// disabled.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key. The caller must close
	// the returned reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key. Idempotent.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object at the specified key,
	// presigned for the given duration where the backend supports it.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// SaveParams describes a deliverable binary to store.
type SaveParams struct {
	TaskID   uuid.UUID
	Filename string // Original filename, used for key extension and type detection
	Size     int64  // Declared size in bytes; 0 when unknown
	Body     io.Reader
}

// StoredObject describes a stored deliverable binary.
type StoredObject struct {
	Locator     string // Durable storage key, recorded on the deliverable
	Size        int64
	ContentType string
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it will be auto-detected from the file extension.
	ContentType string

	// MaxSize specifies the maximum allowed size in bytes.
	// If the data exceeds this size, ErrTooLarge is returned.
	// A value of 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	// If false and the key exists, ErrKeyExists is returned.
	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string    // Object key/path
	Size         int64     // Size in bytes
	ContentType  string    // MIME type
	LastModified time.Time // Last modification time
	ETag         string    // Entity tag (if available)
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	BaseURL string
}

// S3Config holds configuration for S3-compatible object storage.
type S3Config struct {
	// Endpoint is the S3-compatible endpoint URL. Empty for AWS S3 proper.
	Endpoint string

	// AccessKeyID and SecretAccessKey are the API credentials.
	AccessKeyID     string
	SecretAccessKey string

	// BucketName is the bucket deliverables are stored in.
	BucketName string

	// PublicURL is an optional public URL for the bucket. If empty,
	// presigned URLs are used for all access.
	PublicURL string

	// Region is the region passed to the AWS SDK. Default: "auto".
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderS3 identifies the S3-compatible object storage provider.
	ProviderS3 = "s3"
)

// =============================================================================
// Key Generation
// =============================================================================

// DeliverableKey generates a storage key for a deliverable binary.
// Format: tasks/{taskID}/deliverables/{uuid}.{ext}
func DeliverableKey(taskID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	blobID := uuid.New()
	return fmt.Sprintf("tasks/%s/deliverables/%s%s", taskID, blobID, ext)
}
