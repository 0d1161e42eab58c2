//go:build linux

package permission

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// probeDevices reports whether at least one camera node and one sound node
// are readable and writable by this process.
func probeDevices() (camera, microphone bool, err error) {
	camera, err = anyAccessible("/dev/video*")
	if err != nil {
		return false, false, err
	}
	microphone, err = anyAccessible("/dev/snd/*")
	if err != nil {
		return false, false, err
	}
	return camera, microphone, nil
}

func anyAccessible(pattern string) (bool, error) {
	nodes, err := filepath.Glob(pattern)
	if err != nil {
		return false, err
	}
	for _, node := range nodes {
		if unix.Access(node, unix.R_OK|unix.W_OK) == nil {
			return true, nil
		}
	}
	return false, nil
}
