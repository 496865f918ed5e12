package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparse(t *testing.T) {
	A := NewDOK(4, 4)
	A.Set(0, 1, 3)
	A.Set(1, 0, 3)
	A.Set(2, 3, 2)
	A.Set(3, 2, 2)
	A.SetReadOnly("A")
	assert.PanicsWithError(t, `attempt to write to a read only matrix named: "A"`, func() { A.Set(0, 0, 1) })

	C := A.ToCSR()
	nr, nc := C.Dims()
	assert.Equal(t, [2]int{4, 4}, [2]int{nr, nc})
	assert.Equal(t, 4, C.NNZ())
	assert.Equal(t, 2., C.At(2, 3))
	assert.Equal(t, 0., C.At(0, 0))
	assert.Equal(t, C.At(3, 2), C.T().At(2, 3))
	assert.True(t, C.IsSymmetric())

	cols, vals := C.Row(2)
	assert.Equal(t, []int{3}, cols)
	assert.Equal(t, []float64{2}, vals)
	cols, _ = C.Row(1)
	assert.Equal(t, []int{0}, cols)

	B := NewDOK(3, 3)
	B.Set(0, 2, 1)
	assert.False(t, B.ToCSR().IsSymmetric())
	assert.False(t, NewDOK(2, 3).ToCSR().IsSymmetric())
}
