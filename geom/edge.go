package geom

import "strings"

// EdgeMask selects the edges of a quad that receive anti-aliasing.
type EdgeMask uint8

const (
	EdgeLeft EdgeMask = 1 << iota
	EdgeTop
	EdgeRight
	EdgeBottom

	EdgeNone EdgeMask = 0
	EdgeAll           = EdgeLeft | EdgeTop | EdgeRight | EdgeBottom
)

// Has reports whether every edge in o is set in m.
func (m EdgeMask) Has(o EdgeMask) bool { return m&o == o }

// String returns a "|"-separated list of edge names.
func (m EdgeMask) String() string {
	if m == EdgeNone {
		return "None"
	}
	var parts []string
	for _, e := range []struct {
		bit  EdgeMask
		name string
	}{{EdgeLeft, "Left"}, {EdgeTop, "Top"}, {EdgeRight, "Right"}, {EdgeBottom, "Bottom"}} {
		if m&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}
