package universe

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

//Cell is the state of one position of the universe
type Cell bool

const (
	Dead  Cell = false
	Alive Cell = true
)

//BitGrid is a fixed length, densely packed sequence of cells
//addressed by a linear index
type BitGrid struct {
	bits   *bitset.BitSet
	length int
}

//NewBitGrid allocates a grid of n dead cells
func NewBitGrid(n int) *BitGrid {
	if n < 0 {
		panic(fmt.Sprintf("universe: negative bit grid length %d", n))
	}
	return &BitGrid{bits: bitset.New(uint(n)), length: n}
}

//Len returns the number of cells
func (g *BitGrid) Len() int {
	return g.length
}

//Get returns the cell at index i
func (g *BitGrid) Get(i int) Cell {
	g.check(i)
	return Cell(g.bits.Test(uint(i)))
}

//Set sets the cell at index i
func (g *BitGrid) Set(i int, c Cell) {
	g.check(i)
	g.bits.SetTo(uint(i), bool(c))
}

//Clone returns an independent copy of the grid
func (g *BitGrid) Clone() *BitGrid {
	return &BitGrid{bits: g.bits.Clone(), length: g.length}
}

//Words exposes the packed storage without copying:
//cell i is bit i%64 of word i/64. The slice must not be modified
//and must not be used after the grid has been replaced
func (g *BitGrid) Words() []uint64 {
	return g.bits.Bytes()
}

//Count returns the number of alive cells
func (g *BitGrid) Count() int {
	return int(g.bits.Count())
}

//Equal reports whether both grids have the same length and cells
func (g *BitGrid) Equal(o *BitGrid) bool {
	if o == nil || g.length != o.length {
		return false
	}
	return g.bits.Equal(o.bits)
}

//bitset grows on out of range writes, so the bound is enforced here
func (g *BitGrid) check(i int) {
	if i < 0 || i >= g.length {
		panic(fmt.Sprintf("universe: bit grid index %d out of range [0, %d)", i, g.length))
	}
}
