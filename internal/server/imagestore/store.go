// Package imagestore persists verification images before they are announced
// on the queue.
package imagestore

import "context"

// Store saves image content under name and returns the location that
// downstream consumers should read it from.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}
