package addrnbd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidMapping = errors.New("invalid mapping spec")
)

// Mapping is a parsed ADDR=PATH[,ro] argument: map the named file at
// the given device address, optionally read-only.
type Mapping struct {
	Addr     uint64
	Path     string
	ReadOnly bool
}

func ParseMapping(spec string) (Mapping, error) {
	addrStr, rest, ok := strings.Cut(spec, "=")
	if !ok || addrStr == "" || rest == "" {
		return Mapping{}, ErrInvalidMapping
	}

	// Base 0 accepts both decimal and 0x-prefixed addresses.
	addr, err := strconv.ParseUint(addrStr, 0, 64)
	if err != nil {
		return Mapping{}, fmt.Errorf("error parsing mapping address %q: %w", addrStr, err)
	}

	m := Mapping{Addr: addr, Path: rest}
	if path, opt, ok := strings.Cut(rest, ","); ok {
		if opt != "ro" || path == "" {
			return Mapping{}, ErrInvalidMapping
		}
		m.Path = path
		m.ReadOnly = true
	}
	return m, nil
}
