// Package storage keeps attachment blobs in S3-compatible object storage or
// on local disk. Metadata stays in the database; only bytes live here.
package storage

import "context"

// FileInfo describes a stored blob.
type FileInfo struct {
	Filename     string // storage key
	OriginalName string
	MimeType     string
	Size         int64
	Path         string // public URL or serving path
}

type Storage interface {
	Upload(ctx context.Context, data []byte, originalName, mimeType string) (*FileInfo, error)
	// Delete removes a blob by storage key. Callers treat failures as
	// best-effort: the metadata row is cleaned up regardless.
	Delete(ctx context.Context, filename string) error
}
