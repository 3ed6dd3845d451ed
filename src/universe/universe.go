package universe

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//default dimension of a new universe
const (
	DefWidth  = 128
	DefHeight = 128
)

//symbols used by Render
const (
	AliveSymbol = '■'
	DeadSymbol  = '□'
)

//ErrOutOfBounds is returned when a coordinate lies outside the universe
var ErrOutOfBounds = errors.New("coordinate out of bounds")

//Universe is a toroidal Game of Life field
//all the cells are stored in one bit grid in row-major order
//
//Universe is not safe for concurrent use, the owner has to serialize the access
type Universe struct {
	width     uint32
	height    uint32
	cells     *BitGrid
	templates map[string]Template
}

//NewUniverse creates the 128x128 universe with all the cells dead
func NewUniverse() *Universe {
	return NewUniverseWithSize(DefWidth, DefHeight)
}

//NewUniverseWithSize creates the universe of the given dimension with all the cells dead
func NewUniverseWithSize(width, height uint32) *Universe {
	u := &Universe{
		width:     width,
		height:    height,
		templates: builtinTemplates(),
	}
	u.ResetCells()
	return u
}

func (u *Universe) Width() uint32 {
	return u.width
}

func (u *Universe) Height() uint32 {
	return u.height
}

//SetWidth changes the width, all the cells are killed
func (u *Universe) SetWidth(width uint32) {
	u.width = width
	u.ResetCells()
}

//SetHeight changes the height, all the cells are killed
func (u *Universe) SetHeight(height uint32) {
	u.height = height
	u.ResetCells()
}

//ResetCells replaces the cells with the new dead grid of width*height size
func (u *Universe) ResetCells() {
	u.cells = NewBitGrid(int(u.width) * int(u.height))
}

//Index returns the linear index of the cell at row, col
func (u *Universe) Index(row, col uint32) int {
	return int(row)*int(u.width) + int(col)
}

//Get returns the state of the cell at row, col
func (u *Universe) Get(row, col uint32) Cell {
	return u.cells.Get(u.Index(row, col))
}

//LiveNeighborCount counts the alive cells among the 8 neighbours of row, col
//the edges of the field are wrapped around
func (u *Universe) LiveNeighborCount(row, col uint32) uint8 {
	var count uint8
	rowDeltas := [3]uint32{u.height - 1, 0, 1}
	colDeltas := [3]uint32{u.width - 1, 0, 1}
	for _, dr := range rowDeltas {
		for _, dc := range colDeltas {
			if dr == 0 && dc == 0 {
				continue
			}
			r := (row + dr) % u.height
			c := (col + dc) % u.width
			if u.cells.Get(u.Index(r, c)) {
				count++
			}
		}
	}
	return count
}

//Tick advances the universe by one generation
//the next state is computed into the copy of the grid which replaces the current one when complete
func (u *Universe) Tick() {
	next := u.cells.Clone()
	for row := uint32(0); row < u.height; row++ {
		for col := uint32(0); col < u.width; col++ {
			idx := u.Index(row, col)
			next.Set(idx, nextState(u.cells.Get(idx), u.LiveNeighborCount(row, col)))
		}
	}
	u.cells = next
}

//nextState applies B3/S23 to one cell
func nextState(cell Cell, liveNeighbors uint8) Cell {
	alive := bool(cell)
	switch {
	case alive && liveNeighbors < 2:
		return Dead
	case alive && (liveNeighbors == 2 || liveNeighbors == 3):
		return Alive
	case alive && liveNeighbors > 3:
		return Dead
	case !alive && liveNeighbors == 3:
		return Alive
	default:
		return cell
	}
}

//AddTemplate registers the seeding template, a template with the same name is replaced
func (u *Universe) AddTemplate(tmpl Template) {
	u.templates[tmpl.Name] = tmpl
}

//Templates returns the sorted names of the known templates
func (u *Universe) Templates() []string {
	names := make([]string, 0, len(u.templates))
	for name := range u.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//SetTemplate kills all the cells and settles the template with the given name
//unknown names leave the universe empty, coordinates outside the field are skipped
func (u *Universe) SetTemplate(name string) {
	u.ResetCells()
	tmpl, ok := u.templates[name]
	if !ok {
		return
	}
	for _, c := range tmpl.Coordinates {
		if !u.contains(c) {
			continue
		}
		u.cells.Set(u.Index(c.Row, c.Col), Alive)
	}
}

//SetCells makes the listed cells alive keeping the rest of the field
//nothing is changed if any of the coordinates is outside the universe
func (u *Universe) SetCells(cells []Coord) error {
	for _, c := range cells {
		if !u.contains(c) {
			return errors.Wrapf(ErrOutOfBounds, "cell (%d, %d) in %dx%d universe", c.Row, c.Col, u.width, u.height)
		}
	}
	for _, c := range cells {
		u.cells.Set(u.Index(c.Row, c.Col), Alive)
	}
	return nil
}

//SetCell sets the state of one cell
func (u *Universe) SetCell(row, col uint32, c Cell) error {
	coord := Coord{row, col}
	if !u.contains(coord) {
		return errors.Wrapf(ErrOutOfBounds, "cell (%d, %d) in %dx%d universe", row, col, u.width, u.height)
	}
	u.cells.Set(u.Index(row, col), c)
	return nil
}

//Cells returns the current grid, the caller must not modify it
func (u *Universe) Cells() *BitGrid {
	return u.cells
}

//LiveCells returns the count of alive cells
func (u *Universe) LiveCells() int {
	return u.cells.Count()
}

//Render draws the field as text, one line per row
func (u *Universe) Render() string {
	var b strings.Builder
	b.Grow(int(u.height) * (int(u.width)*3 + 1))
	for row := uint32(0); row < u.height; row++ {
		for col := uint32(0); col < u.width; col++ {
			if u.cells.Get(u.Index(row, col)) {
				b.WriteRune(AliveSymbol)
			} else {
				b.WriteRune(DeadSymbol)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (u *Universe) String() string {
	return u.Render()
}

func (u *Universe) contains(c Coord) bool {
	return c.Row < u.height && c.Col < u.width
}
