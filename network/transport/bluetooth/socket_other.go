//go:build !linux

package bluetooth

import "os"

func dial(Descriptor) (*os.File, error) {
	return nil, ErrUnsupported
}
