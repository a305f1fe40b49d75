// Package viz renders particle scenes in the terminal.
//
// Particles are projected through an orbiting [Camera] onto a braille
// [Canvas], two by four dots per character cell. [Model] is a Bubble Tea
// program that takes one scene frame per tick and shows kinetic energy,
// yielding and frame cost beside the canvas.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	N     - Single frame while paused
//	S     - Toggle the surface mesh
//	T     - Cycle colour themes
//	G     - Toggle GIF recording
//	[ ]   - Replay recorded frames
//	?     - Help overlay
package viz
