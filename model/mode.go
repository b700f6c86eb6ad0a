package model

import "fmt"

// Mode is the capability a session holds on an array.
type Mode uint8

const (
	// ModeRead opens a read-only snapshot of the array.
	ModeRead Mode = iota + 1
	// ModeWrite opens the array for writing. At most one write session
	// may be open per array.
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeRead || m == ModeWrite
}
