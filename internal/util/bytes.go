package util

import (
	"fmt"
)

var sizeSuffixes = [...]string{"KB", "MB", "GB", "TB", "PB", "EB"}

func formatBytes(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	v, i := float64(n)/1024, 0
	for v >= 1024 && i < len(sizeSuffixes)-1 {
		v /= 1024
		i++
	}
	prec := 2
	if v >= 100 {
		prec = 0
	} else if v >= 10 {
		prec = 1
	}
	return fmt.Sprintf("%.*f %s", prec, v, sizeSuffixes[i])
}

// Bytes formats as a human-readable size when printed.
type Bytes uint64

func (b Bytes) String() string {
	return formatBytes(uint64(b))
}

// DetailedBytes additionally includes the exact byte count.
type DetailedBytes uint64

func (b DetailedBytes) String() string {
	return fmt.Sprintf("%s (%d bytes)", formatBytes(uint64(b)), b)
}
