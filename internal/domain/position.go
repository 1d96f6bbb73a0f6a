package domain

// Position is the per-bar trading exposure.
type Position int8

// Position values.
const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

// String returns a short label for the position.
func (p Position) String() string {
	switch p {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "flat"
	}
}

// Valid reports whether p is one of Short, Flat, Long.
func (p Position) Valid() bool {
	return p >= Short && p <= Long
}
