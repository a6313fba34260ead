//go:build linux

package bluetooth

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// dial connects an RFCOMM socket and hands it to the runtime poller so reads honour
// deadlines and Close unblocks a pending Read.
func dial(d Descriptor) (*os.File, error) {
	addr, err := parseAddress(d.Address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: uint8(d.Channel)}); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return os.NewFile(uintptr(fd), "rfcomm:"+d.String()), nil
}

// parseAddress turns 00:11:22:AA:BB:CC into the little-endian bdaddr the kernel expects.
func parseAddress(s string) ([6]uint8, error) {
	var addr [6]uint8
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return addr, fmt.Errorf("malformed address %q", s)
	}
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("malformed address %q: %w", s, err)
		}
		addr[len(addr)-1-i] = uint8(b)
	}
	return addr, nil
}
