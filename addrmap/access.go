package addrmap

// Access is a per-segment accessibility bit set. The low byte is
// reserved for the library; the remaining bits carry caller-defined
// meaning and are preserved verbatim through merge, split and copy.
type Access uint32

const (
	Executable Access = 0x00000001
	Writable   Access = 0x00000002
	Readable   Access = 0x00000004

	// ReservedMask covers the bits reserved for library use.
	ReservedMask Access = 0x000000ff
	// UserMask covers the bits available to callers.
	UserMask Access = 0xffffff00
)

// Allowed reports whether a segment with accessibility a passes an
// access filter: every required bit must be set, and every prohibited
// bit must be clear.
func (a Access) Allowed(required, prohibited Access) bool {
	return a&required == required && (^a)&prohibited == prohibited
}

func (a Access) String() string {
	b := []byte("---")
	if a&Readable != 0 {
		b[0] = 'r'
	}
	if a&Writable != 0 {
		b[1] = 'w'
	}
	if a&Executable != 0 {
		b[2] = 'x'
	}
	return string(b)
}
