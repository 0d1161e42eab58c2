package port

import "context"

// WatermarkAssetProvider resolves a remote image to a local file path. The
// path is only valid for the life of the process.
type WatermarkAssetProvider interface {
	Resolve(ctx context.Context, url string) (string, error)
}
