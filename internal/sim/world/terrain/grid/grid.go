// Package grid is the only place that converts between chunk-local lattice
// coordinates and flattened voxel indices.
package grid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultWidth  = 16
	DefaultHeight = 64
)

// Position is a lattice index when integral and in range, otherwise a
// world-space offset.
type Position = mgl32.Vec3

// Dims is the chunk shape: Width x Height x Width.
type Dims struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func DefaultDims() Dims {
	return Dims{Width: DefaultWidth, Height: DefaultHeight}
}

func (d Dims) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid chunk dims %dx%dx%d", d.Width, d.Height, d.Width)
	}
	return nil
}

func (d Dims) Volume() int {
	return d.Width * d.Height * d.Width
}

func (d Dims) InBounds(x, y, z int) bool {
	return x >= 0 && x < d.Width && y >= 0 && y < d.Height && z >= 0 && z < d.Width
}

// Index assumes InBounds(x, y, z).
func (d Dims) Index(x, y, z int) int {
	return d.Width*d.Width*y + d.Width*z + x
}

// Coords is the inverse of Index.
func (d Dims) Coords(i int) (x, y, z int) {
	x = i % d.Width
	z = (i / d.Width) % d.Width
	y = i / (d.Width * d.Width)
	return x, y, z
}

// ToIndex truncates each component. Callers floor first.
func (d Dims) ToIndex(p Position) int {
	return d.Index(int(p.X()), int(p.Y()), int(p.Z()))
}

func (d Dims) ToPosition(i int) Position {
	x, y, z := d.Coords(i)
	return Position{float32(x), float32(y), float32(z)}
}

// Integral reports whether every component of p is a whole number.
func Integral(p Position) bool {
	for _, v := range p {
		if v != float32(int(v)) {
			return false
		}
	}
	return true
}
