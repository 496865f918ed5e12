package utils

// DynBuffer is a growable slice reused between message rounds.
type DynBuffer[T any] struct {
	cells []T
}

func NewDynBuffer[T any](capacity int) *DynBuffer[T] {
	return &DynBuffer[T]{cells: make([]T, 0, capacity)}
}

func (b *DynBuffer[T]) Add(cell T) { b.cells = append(b.cells, cell) }

func (b *DynBuffer[T]) Cells() []T { return b.cells }

func (b *DynBuffer[T]) Len() int { return len(b.cells) }

// Reset empties the buffer and keeps its storage.
func (b *DynBuffer[T]) Reset() {
	var zero T
	for i := range b.cells {
		b.cells[i] = zero
	}
	b.cells = b.cells[:0]
}
