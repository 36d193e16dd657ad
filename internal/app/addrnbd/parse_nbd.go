package addrnbd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidNbdPath = errors.New("invalid nbd path")

const nbdPrefix = "/dev/nbd"

// ParseNbdIndex extracts the device index from a /dev/nbdN path, for
// configuring the device over netlink instead of the ioctl interface.
func ParseNbdIndex(dev string) (int, error) {
	idx, ok := strings.CutPrefix(dev, nbdPrefix)
	if !ok || idx == "" {
		return 0, ErrInvalidNbdPath
	}
	i, err := strconv.ParseUint(idx, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad nbd device index %q: %w", idx, err)
	}
	return int(i), nil
}
