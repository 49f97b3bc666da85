package utils

import (
	"fmt"
	"strings"
)

// BCType selects how a ghost row or column is filled at a domain edge
type BCType uint16

const (
	// BCNone indicates no boundary condition (interior edge)
	BCNone BCType = iota
	// BCWall reflects the state, negating the normal momentum
	BCWall
	// BCOpen copies the state, letting waves leave the domain
	BCOpen
	// BCPartitionBoundary is an edge shared with a neighboring cluster
	BCPartitionBoundary
)

// String returns the string representation of a BCType
func (bc BCType) String() string {
	names := map[BCType]string{
		BCNone:              "None",
		BCWall:              "Wall",
		BCOpen:              "Open",
		BCPartitionBoundary: "PartitionBoundary",
	}
	if name, ok := names[bc]; ok {
		return name
	}
	return "Unknown"
}

// BCNameMap provides a mapping from common boundary condition names to BCType
// Keys are lowercase for case-insensitive matching
var BCNameMap = map[string]BCType{
	"wall":         BCWall,
	"reflective":   BCWall,
	"slip":         BCWall,
	"slip_wall":    BCWall,
	"open":         BCOpen,
	"outflow":      BCOpen,
	"transmissive": BCOpen,
	"farfield":     BCOpen,
	"partition":    BCPartitionBoundary,
	"interface":    BCPartitionBoundary,
}

// ParseBCName converts a boundary condition name string to BCType
// The matching is case-insensitive and trims whitespace, an empty name is a wall
func ParseBCName(name string) (bc BCType, err error) {
	var (
		ok        bool
		lowerName = strings.ToLower(strings.TrimSpace(name))
	)
	if len(lowerName) == 0 {
		bc = BCWall
		return
	}
	if bc, ok = BCNameMap[lowerName]; !ok {
		err = fmt.Errorf("unknown boundary condition %q", name)
	}
	return
}
