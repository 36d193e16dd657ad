package addrnbd

import (
	"errors"
	"regexp"
	"strconv"
)

var (
	ErrInvalidSizeString = errors.New("invalid size string")
	ErrSizeTooBig        = errors.New("size too big")

	sizePattern = regexp.MustCompile("^([1-9][0-9]*)([KMGTP])?$")
)

// RoundSizeToBlocks rounds the inclusive upper address up to a whole
// number of blocks. Addresses at or beyond maxSize are rejected, which
// also keeps the rounding from overflowing near the top of the address
// space.
func RoundSizeToBlocks(upper, blockSize, maxSize uint64) (uint64, error) {
	if upper >= maxSize {
		return 0, ErrSizeTooBig
	}
	return (upper + blockSize) &^ (blockSize - 1), nil
}

func ParseSizeString(str string) (uint64, error) {
	// Special case "0" to simplify the regexp.
	if str == "0" {
		return 0, nil
	}

	parts := sizePattern.FindStringSubmatch(str)
	if len(parts) < 2 {
		return 0, ErrInvalidSizeString
	}

	size, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, ErrInvalidSizeString
	}
	if len(parts) == 3 {
		switch parts[2] {
		case "K":
			size *= (1 << 10)
		case "M":
			size *= (1 << 20)
		case "G":
			size *= (1 << 30)
		case "T":
			size *= (1 << 40)
		case "P":
			size *= (1 << 50)
		}
	}
	return size, nil
}
