package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied    = errors.New("camera or microphone permission denied")
	ErrControllerClosed    = errors.New("session controller closed")
	ErrInvalidChannelName  = errors.New("invalid channel name")
	ErrPeerIDTaken         = errors.New("peer id already in use")
	ErrAlreadyJoined       = errors.New("already joined a channel")
	ErrWatermarkSuperseded = errors.New("watermark disabled while enabling")
)

// EngineInitError reports that the engine could not be created or prepared.
type EngineInitError struct {
	Err error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("engine init: %v", e.Err)
}

func (e *EngineInitError) Unwrap() error { return e.Err }

// EngineOperationError reports a failed engine call. Op names the call.
type EngineOperationError struct {
	Op  string
	Err error
}

func (e *EngineOperationError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineOperationError) Unwrap() error { return e.Err }

type AssetFetchError struct {
	URL string
	Err error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("fetch asset %s: %v", e.URL, e.Err)
}

func (e *AssetFetchError) Unwrap() error { return e.Err }
