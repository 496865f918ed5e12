package types

import "fmt"

// ChunkID names one of the six cubed-sphere faces. CubeChunk is not a face,
// it tags node keys that live in the central cube lattice.
type ChunkID uint8

const (
	ChunkAB ChunkID = iota
	ChunkAC
	ChunkBC
	ChunkACAntipode
	ChunkBCAntipode
	ChunkABAntipode
	CubeChunk
)

const NChunksMax = 6

var chunkNames = [...]string{"AB", "AC", "BC", "AC_ANTIPODE", "BC_ANTIPODE", "AB_ANTIPODE", "CUBE"}

func (c ChunkID) String() string {
	if int(c) < len(chunkNames) {
		return chunkNames[c]
	}
	return fmt.Sprintf("ChunkID(%d)", c)
}

// Side is a lateral face of a slice or chunk, plus the bottom.
type Side uint8

const (
	XiMin Side = iota
	XiMax
	EtaMin
	EtaMax
	Bottom
)

const NumFacesShared = 4

var sideNames = [...]string{"XI_MIN", "XI_MAX", "ETA_MIN", "ETA_MAX", "BOTTOM"}

func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return fmt.Sprintf("Side(%d)", s)
}

// Corner is labelled (xi, eta): LowerUpper is xi-min, eta-max.
type Corner uint8

const (
	LowerLower Corner = iota
	LowerUpper
	UpperLower
	UpperUpper
)

const NumCornersShared = 4

var cornerNames = [...]string{"LOWER_LOWER", "LOWER_UPPER", "UPPER_LOWER", "UPPER_UPPER"}

func (c Corner) String() string {
	if int(c) < len(cornerNames) {
		return cornerNames[c]
	}
	return fmt.Sprintf("Corner(%d)", c)
}

// Sides returns the two sides that meet at the corner, xi side first.
func (c Corner) Sides() (xi, eta Side) {
	switch c {
	case LowerLower:
		return XiMin, EtaMin
	case LowerUpper:
		return XiMin, EtaMax
	case UpperLower:
		return XiMax, EtaMin
	default:
		return XiMax, EtaMax
	}
}
