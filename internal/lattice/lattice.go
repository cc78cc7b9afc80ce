package lattice

import (
	"fmt"
	"image/color"
)

// Point is a cell coordinate. A cell's identity is its Point; cells never move.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the point translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the offset from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// State is a cell's activity state.
type State uint8

const (
	// Active cells are still processed by rule passes.
	Active State = iota
	// Inactive cells have settled for the current phase.
	Inactive
	// AlwaysInactive is reserved for padding cells.
	AlwaysInactive
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case AlwaysInactive:
		return "always-inactive"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Class is the classification a rule assigned to a cell.
type Class uint8

const (
	// Unclassified cells have not been through edge classification.
	Unclassified Class = iota
	// Quiescent cells are interior to a uniform region.
	Quiescent
	// Edge cells differ from at least one neighbour by more than epsilon.
	Edge
)

func (c Class) String() string {
	switch c {
	case Unclassified:
		return "unclassified"
	case Quiescent:
		return "quiescent"
	case Edge:
		return "edge"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// PaddingColour is the sentinel colour carried by padding cells.
var PaddingColour = color.RGBA{}

// Cell is a read-only view of one lattice position.
type Cell struct {
	Point
	State  State
	Class  Class
	Colour color.RGBA
}

// IsPadding reports whether the cell lies outside the image.
func (c Cell) IsPadding() bool { return c.State == AlwaysInactive }

// View is the read side of a lattice as seen by rules.
type View interface {
	Width() int
	Height() int
	Cell(x, y int) Cell
}

type record struct {
	colour color.RGBA
	state  State
	class  Class
}

var padding = record{colour: PaddingColour, state: AlwaysInactive}

// Lattice is a padded 2D grid of cells with front and back buffers.
//
// Storage is a flat row-major slice of (width+2r)×(height+2r) records so the
// cell at (x, y) lives at (x+r, y+r). The border records are padding and are
// never written.
type Lattice struct {
	width, height int
	radius        int
	stride, rows  int
	front, back   []record
}

// New creates a lattice with every cell ACTIVE, unclassified, and transparent
// black. radius is the padding thickness and the largest neighbourhood radius
// the lattice supports.
func New(width, height, radius int) (*Lattice, error) {
	if width <= 0 || height <= 0 || radius < 0 {
		return nil, fmt.Errorf("%w: %dx%d r=%d", ErrInvalidDimension, width, height, radius)
	}
	l := &Lattice{
		width:  width,
		height: height,
		radius: radius,
		stride: width + 2*radius,
		rows:   height + 2*radius,
	}
	n := l.stride * l.rows
	l.front = make([]record, n)
	l.back = make([]record, n)
	for py := 0; py < l.rows; py++ {
		for px := 0; px < l.stride; px++ {
			i := py*l.stride + px
			x, y := px-radius, py-radius
			if x < 0 || x >= width || y < 0 || y >= height {
				l.front[i] = padding
				l.back[i] = padding
			}
		}
	}
	return l, nil
}

// Width returns the number of image columns.
func (l *Lattice) Width() int { return l.width }

// Height returns the number of image rows.
func (l *Lattice) Height() int { return l.height }

// Radius returns the padding thickness.
func (l *Lattice) Radius() int { return l.radius }

// Len returns the number of non-padding cells.
func (l *Lattice) Len() int { return l.width * l.height }

// Contains reports whether p is a non-padding cell.
func (l *Lattice) Contains(p Point) bool {
	return p.X >= 0 && p.X < l.width && p.Y >= 0 && p.Y < l.height
}

// InPadded reports whether p lies inside the padded grid.
func (l *Lattice) InPadded(p Point) bool {
	return p.X >= -l.radius && p.X < l.width+l.radius && p.Y >= -l.radius && p.Y < l.height+l.radius
}

// Index returns the row-major index of p among the non-padding cells.
func (l *Lattice) Index(p Point) (int, error) {
	if !l.Contains(p) {
		return 0, fmt.Errorf("%w: %v not in %dx%d", ErrOutOfBounds, p, l.width, l.height)
	}
	return p.Y*l.width + p.X, nil
}

// PointAt is the inverse of Index.
func (l *Lattice) PointAt(i int) Point {
	return Point{X: i % l.width, Y: i / l.width}
}

func (l *Lattice) slot(x, y int) int {
	return (y+l.radius)*l.stride + x + l.radius
}

// Cell returns the front-buffer view of (x, y). Coordinates in the padding
// ring read the stored padding record; anything beyond it reads as padding
// too instead of failing.
func (l *Lattice) Cell(x, y int) Cell {
	p := Point{X: x, Y: y}
	r := padding
	if l.InPadded(p) {
		r = l.front[l.slot(x, y)]
	}
	return Cell{Point: p, State: r.state, Class: r.class, Colour: r.colour}
}

// At is Cell addressed by Point.
func (l *Lattice) At(p Point) Cell { return l.Cell(p.X, p.Y) }

// Colour returns the front-buffer colour of (x, y).
func (l *Lattice) Colour(x, y int) color.RGBA { return l.Cell(x, y).Colour }

func (l *Lattice) writable(x, y int) (int, error) {
	if !l.Contains(Point{X: x, Y: y}) {
		return 0, fmt.Errorf("%w: write to (%d,%d)", ErrOutOfBounds, x, y)
	}
	return l.slot(x, y), nil
}

// SetColour writes the back-buffer colour of (x, y).
func (l *Lattice) SetColour(x, y int, c color.RGBA) error {
	i, err := l.writable(x, y)
	if err != nil {
		return err
	}
	l.back[i].colour = c
	return nil
}

// SetState writes the back-buffer state of (x, y). Only ACTIVE→INACTIVE and
// same-state writes are accepted.
func (l *Lattice) SetState(x, y int, s State) error {
	i, err := l.writable(x, y)
	if err != nil {
		return err
	}
	switch {
	case s == AlwaysInactive:
		return fmt.Errorf("%w: %v is reserved for padding", ErrOutOfBounds, s)
	case s == Active && l.back[i].state == Inactive:
		return fmt.Errorf("%w: (%d,%d)", ErrReactivation, x, y)
	}
	l.back[i].state = s
	return nil
}

// SetClass writes the back-buffer class of (x, y).
func (l *Lattice) SetClass(x, y int, c Class) error {
	i, err := l.writable(x, y)
	if err != nil {
		return err
	}
	l.back[i].class = c
	return nil
}

// BeginPass seeds the back buffer from the front buffer.
func (l *Lattice) BeginPass() {
	copy(l.back, l.front)
}

// Commit swaps the buffers, publishing everything written since BeginPass.
func (l *Lattice) Commit() {
	l.front, l.back = l.back, l.front
}

// Reactivate marks every cell ACTIVE, starting a new phase.
func (l *Lattice) Reactivate() {
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			i := l.slot(x, y)
			l.front[i].state = Active
			l.back[i].state = Active
		}
	}
}

// Points returns every non-padding cell in row-major order.
func (l *Lattice) Points() []Point {
	pts := make([]Point, 0, l.Len())
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			pts = append(pts, Point{X: x, Y: y})
		}
	}
	return pts
}

// ActiveCells returns the ACTIVE cells in row-major order.
func (l *Lattice) ActiveCells() []Point {
	pts := make([]Point, 0)
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			if l.front[l.slot(x, y)].state == Active {
				pts = append(pts, Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// CountClass returns how many cells carry class c.
func (l *Lattice) CountClass(c Class) int {
	n := 0
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			if l.front[l.slot(x, y)].class == c {
				n++
			}
		}
	}
	return n
}

// Colours returns a row-major copy of the front-buffer colours.
func (l *Lattice) Colours() []color.RGBA {
	out := make([]color.RGBA, 0, l.Len())
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			out = append(out, l.front[l.slot(x, y)].colour)
		}
	}
	return out
}

// Classes returns a row-major copy of the front-buffer classes.
func (l *Lattice) Classes() []Class {
	out := make([]Class, 0, l.Len())
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			out = append(out, l.front[l.slot(x, y)].class)
		}
	}
	return out
}
