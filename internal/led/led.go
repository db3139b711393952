// Package led holds the identities and colour values shared by every part of
// the display driver, together with the error taxonomy reported to callers.
package led

import "fmt"

const (
	// Count is the number of LEDs in the array.
	Count = 1593
	// Controllers is the number of microcontrollers driving the array.
	Controllers = 2
)

// ID identifies one LED of the array, in [0, Count).
type ID int

// Valid reports whether the id addresses an LED.
func (id ID) Valid() bool {
	return id >= 0 && id < Count
}

// Controller is the index of a microcontroller, 0 or 1.
type Controller int

// Valid reports whether c names one of the two controllers.
func (c Controller) Valid() bool {
	return c >= 0 && c < Controllers
}

// Color is an 8-bit per channel RGB triple in wire order.
type Color struct {
	R, G, B uint8
}

// Black is the colour sent by a clear.
var Black = Color{}

// Bytes returns the colour as it appears on the wire.
func (c Color) Bytes() [3]byte {
	return [3]byte{c.R, c.G, c.B}
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorFromInts converts an (r, g, b) sequence supplied by a caller into a
// Color. It fails with ErrInvalidColor when the arity is not three or a
// channel does not fit in one byte.
func ColorFromInts(vals ...int) (Color, error) {
	if len(vals) != 3 {
		return Color{}, fmt.Errorf("%w: got %d channels, want 3", ErrInvalidColor, len(vals))
	}
	for i, v := range vals {
		if v < 0 || v > 255 {
			return Color{}, fmt.Errorf("%w: channel %d value %d outside [0,255]", ErrInvalidColor, i, v)
		}
	}
	return Color{R: uint8(vals[0]), G: uint8(vals[1]), B: uint8(vals[2])}, nil
}

// Clamp builds a Color from computed channel values, saturating each one to
// [0,255].
func Clamp(r, g, b int) Color {
	return Color{R: clamp8(r), G: clamp8(g), B: clamp8(b)}
}

func clamp8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

// Fill returns n copies of c.
func Fill(n int, c Color) []Color {
	out := make([]Color, n)
	for i := range out {
		out[i] = c
	}
	return out
}
