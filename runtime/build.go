// Package runtime holds the build identity of the running binary.
package runtime

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const buildTimeLayout = "2006-01-02 15:04:05"

// Set at build time:
//
//	go build -ldflags "-X 'github.com/kubovy/serial-communication/runtime._buildTimeStr=2026-01-02 15:04:05'"
var (
	_version      = "dev"
	_buildTimeStr string

	_buildTime     time.Time
	_buildTimeOnce sync.Once
	_firmware      atomic.Pointer[string]
)

// Version is the release version of the binary.
func Version() string {
	return _version
}

// BuildTime parses the build time injected by the linker. The zero time means it was not
// set or could not be parsed.
func BuildTime() time.Time {
	_buildTimeOnce.Do(func() {
		if _buildTimeStr == "" {
			return
		}
		t, err := time.ParseInLocation(buildTimeLayout, _buildTimeStr, time.UTC)
		if err != nil {
			return
		}
		_buildTime = t
	})
	return _buildTime
}

// SetFirmware records the firmware revision the binary was qualified against. It can be
// set once.
func SetFirmware(rev string) error {
	if rev == "" {
		return errors.New("firmware revision is empty")
	}
	if !_firmware.CompareAndSwap(nil, &rev) {
		return fmt.Errorf("firmware revision has already been set to %s", *_firmware.Load())
	}
	return nil
}

// Firmware returns the revision passed to SetFirmware, empty if none.
func Firmware() string {
	if rev := _firmware.Load(); rev != nil {
		return *rev
	}
	return ""
}

// String describes the build in one line.
func String() string {
	s := "version " + Version()
	if t := BuildTime(); !t.IsZero() {
		s += ", built " + t.Format(time.RFC3339)
	}
	if rev := Firmware(); rev != "" {
		s += ", firmware " + rev
	}
	return s
}
