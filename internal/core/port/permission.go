package port

import "context"

// PermissionGate asks for camera and microphone access as one unit. It never
// returns an error: any failure reads as not granted.
type PermissionGate interface {
	RequestMediaPermissions(ctx context.Context) bool
}
