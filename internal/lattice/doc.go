// Package lattice provides the padded, double-buffered cell grid that the
// cellular-automaton engine runs on.
//
// A Lattice owns every cell of one image. Cells are addressed by their
// coordinates; there are no pointers between cells, neighbour lists, or the
// lattice itself. Positions outside [0,width)×[0,height) resolve to a shared
// padding cell, so neighbourhood code never has to check bounds.
//
// # Coordinate System
//
// Coordinates follow the image convention:
//   - Origin (0, 0) at the top-left cell
//   - X increases rightward
//   - Y increases downward
//
// # Double Buffering
//
// Each cell has a front (read) and back (write) record holding its colour,
// state, and class. Readers always see the front buffer. A rule pass calls
// BeginPass to seed the back buffer from the front, writes results with
// SetColour, SetState, and SetClass, then calls Commit to swap the buffers.
// Reads during a pass therefore observe the snapshot taken at BeginPass no
// matter how workers are scheduled.
//
// # Thread Safety
//
// Reads are safe from any number of goroutines. Writes to the back buffer are
// safe concurrently as long as no two goroutines write the same cell, which the
// executor guarantees by handing each cell to exactly one worker. BeginPass,
// Commit, and Reactivate must not run concurrently with anything else.
package lattice
