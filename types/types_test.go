package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeKey(t *testing.T) {
	{ // Test packed key round trip
		k := NodeKey{Chunk: ChunkBCAntipode, I: 17, J: 1<<20 - 1, L: 3}
		assert.Equal(t, k, UnpackNodeKey(k.Pack()))

		k = NodeKey{Chunk: CubeChunk, I: 0, J: 0, L: 0}
		assert.Equal(t, uint64(CubeChunk)<<60, k.Pack())
		assert.True(t, k.IsCube())
	}
	{ // Test ordering is (Chunk, I, J, L)
		keys := []NodeKey{
			{ChunkAC, 0, 0, 0},
			{ChunkAB, 2, 0, 0},
			{ChunkAB, 1, 5, 0},
			{ChunkAB, 1, 4, 9},
		}
		SortNodeKeys(keys)
		assert.Equal(t, []NodeKey{
			{ChunkAB, 1, 4, 9},
			{ChunkAB, 1, 5, 0},
			{ChunkAB, 2, 0, 0},
			{ChunkAC, 0, 0, 0},
		}, keys)
	}
	{ // Test out of range index panics
		assert.Panics(t, func() { NodeKey{I: -1}.Pack() })
		assert.Panics(t, func() { NodeKey{L: 1 << 20}.Pack() })
	}
	{ // Test face key is independent of listing order
		a := [4]NodeKey{{ChunkAB, 0, 0, 1}, {ChunkAB, 1, 0, 1}, {ChunkAB, 1, 1, 1}, {ChunkAB, 0, 1, 1}}
		b := [4]NodeKey{a[2], a[0], a[3], a[1]}
		assert.Equal(t, NewFaceKey(a), NewFaceKey(b))
	}
}

func TestElementTag(t *testing.T) {
	for _, f := range AllFlags() {
		tag := TagOf(f)
		assert.Equal(t, f, tag.Flag())
		assert.Equal(t, f.Region(), tag.Region())
		_, err := NewElementTag(tag.Region(), f)
		assert.NoError(t, err)
	}
	_, err := NewElementTag(OuterCore, FlagCrust)
	assert.Error(t, err)
	_, err = NewElementTag(InnerCore, Flag(42))
	assert.Error(t, err)
	assert.Panics(t, func() { TagOf(Flag(0)) })
	assert.True(t, ElementTag{}.IsZero())

	// The mapping from flag to region must be exhaustive
	counts := map[Region]int{}
	for _, f := range AllFlags() {
		counts[f.Region()]++
	}
	assert.Equal(t, map[Region]int{CrustMantle: 4, OuterCore: 1, InnerCore: 5}, counts)
	assert.Equal(t, 10, len(AllFlags()))
	assert.Equal(t, Flag(10), FlagInFictitiousCube)
}

func TestErrors(t *testing.T) {
	var (
		cfgErr  *ConfigurationError
		topoErr *TopologyConsistencyError
		modErr  *ModelEvaluationError
	)
	err := fmt.Errorf("planning: %w", NewConfigurationError("NEX", "must be divisible by %d", 8))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "NEX", cfgErr.Parameter)

	err = fmt.Errorf("reconcile: %w", NewTopologyError(3, 7, "XI_MAX", "node count %d != %d", 10, 12))
	require.True(t, errors.As(err, &topoErr))
	assert.Equal(t, 3, topoErr.SliceA)
	assert.Equal(t, 7, topoErr.SliceB)
	assert.Contains(t, err.Error(), "slices 3 and 7")

	err = NewModelError("gravity", 1221000, "density is NaN")
	require.True(t, errors.As(err, &modErr))
	assert.Equal(t, 1221000., modErr.Radius)

	assert.Equal(t, "LOWER_UPPER", LowerUpper.String())
	xi, eta := UpperLower.Sides()
	assert.Equal(t, XiMax, xi)
	assert.Equal(t, EtaMin, eta)
}
