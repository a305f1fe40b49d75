package viz

import (
	"math/bits"
	"strings"
)

// blank is the empty braille cell. Each cell carries a 2x4 dot matrix:
//
//	1 4
//	2 5
//	3 6
//	7 8
const blank rune = 0x2800

var pixelMap = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille raster of Width x Height cells, addressed in dots
// (Width*2 by Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// cell returns the cell holding dot (x, y) and the dot's bit, or nil when the
// dot lies outside the canvas.
func (c *Canvas) cell(x, y int) (*rune, rune) {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return nil, 0
	}
	return &c.Grid[y/4][x/2], pixelMap[y%4][x%2]
}

// Set lights dot (x, y). Dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if r, bit := c.cell(x, y); r != nil {
		*r |= bit
	}
}

func (c *Canvas) Unset(x, y int) {
	if r, bit := c.cell(x, y); r != nil {
		*r &^= bit
	}
}

func (c *Canvas) Clear() {
	for _, row := range c.Grid {
		for j := range row {
			row[j] = blank
		}
	}
}

// DrawLine lights the dots of a Bresenham line from (x0, y0) to (x1, y1).
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// EachDot calls fn with the dot coordinates of every lit dot, cell by cell.
func (c *Canvas) EachDot(fn func(x, y int)) {
	for row, cells := range c.Grid {
		for col, r := range cells {
			if r == blank {
				continue
			}
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if r&pixelMap[dy][dx] != 0 {
						fn(col*2+dx, row*4+dy)
					}
				}
			}
		}
	}
}

// Lit counts the lit dots.
func (c *Canvas) Lit() int {
	n := 0
	for _, row := range c.Grid {
		for _, r := range row {
			n += bits.OnesCount32(uint32(r - blank))
		}
	}
	return n
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
