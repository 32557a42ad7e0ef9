// Package imagestore persists uploaded voucher images so failed items can
// be re-displayed next to their source image.
package imagestore

import "context"

// Store saves uploaded images and serves them back by reference.
type Store interface {
	// Save stores the image and returns an opaque reference (a URL path or
	// a gs:// URI depending on the implementation).
	Save(ctx context.Context, filename string, data []byte) (string, error)

	// Load fetches the image bytes for a previously returned reference.
	Load(ctx context.Context, ref string) ([]byte, error)
}
