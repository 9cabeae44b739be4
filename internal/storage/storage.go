package storage

import "context"

//go:generate go run go.uber.org/mock/mockgen -source=storage.go -destination=mocks/mock.go

// Uploader stores a prepared media file under key and returns its durable
// remote URL. Failures are retryable.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}
