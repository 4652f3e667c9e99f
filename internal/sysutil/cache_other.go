//go:build !linux

package sysutil

import "errors"

// ClearOSCaches is only supported on linux.
func ClearOSCaches() error {
	return errors.New("clearing OS caches is only supported on linux")
}
