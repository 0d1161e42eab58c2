// Package permission answers whether the process may use the camera and the
// microphone.
package permission

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type Mode string

const (
	ModeDevice Mode = "device"
	ModeGrant  Mode = "grant"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDevice, ModeGrant:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown permission mode %q", s)
}

// Gate implements port.PermissionGate.
type Gate struct {
	mode  Mode
	probe func() (camera, microphone bool, err error)
}

func NewGate(mode Mode) *Gate {
	return &Gate{mode: mode, probe: probeDevices}
}

func (g *Gate) RequestMediaPermissions(ctx context.Context) (granted bool) {
	if g.mode == ModeGrant {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("module", "permission").Msg("Device probe panicked")
			granted = false
		}
	}()

	camera, microphone, err := g.probe()
	if err != nil {
		log.Warn().Err(err).Str("module", "permission").Msg("Device probe failed")
		return false
	}
	log.Info().Str("module", "permission").Bool("camera", camera).Bool("microphone", microphone).Msg("Media permissions")
	return camera && microphone
}
