package imaging

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/banshee-data/display1593/internal/calibration"
	"github.com/banshee-data/display1593/internal/display"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/mask"
)

// Prepare returns an n x n RGB copy of buf. Extra channels beyond the third
// are dropped and single-channel (or gray+alpha) images are replicated to
// RGB. A non-square image is first cropped symmetrically along its longer
// side, then resized with bilinear interpolation.
func Prepare(buf *Buffer, n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid target size %d", n)
	}
	side := min(buf.Width, buf.Height)
	x0 := (buf.Width - side) / 2
	y0 := (buf.Height - side) / 2

	sq := &Buffer{Width: side, Height: side, Channels: 3, Pix: make([]uint8, side*side*3)}
	i := 0
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			px := buf.at(x, y)
			if len(px) >= 3 {
				sq.Pix[i], sq.Pix[i+1], sq.Pix[i+2] = px[0], px[1], px[2]
			} else {
				sq.Pix[i], sq.Pix[i+1], sq.Pix[i+2] = px[0], px[0], px[0]
			}
			i += 3
		}
	}
	if side == n {
		return sq, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, n, n))
	draw.BiLinear.Scale(dst, dst.Bounds(), sq.RGBA(), image.Rect(0, 0, side, side), draw.Src, nil)
	return FromImage(dst), nil
}

// Convert averages each LED's mask pixels of a prepared square image. The
// mean is truncated to whole channel values. An LED without pixels, possible
// only in an unvalidated mask, stays black.
func Convert(square *Buffer, m *mask.Mask) ([]led.Color, error) {
	if square.Width != m.Size || square.Height != m.Size {
		return nil, fmt.Errorf("%w: image is %dx%d, mask is %dx%d",
			led.ErrSizeMismatch, square.Width, square.Height, m.Size, m.Size)
	}
	if square.Channels != 3 {
		return nil, fmt.Errorf("convert needs 3 channels, got %d", square.Channels)
	}
	out := make([]led.Color, len(m.Pixels))
	for id, pixels := range m.Pixels {
		var r, g, b int
		for _, p := range pixels {
			o := int(p) * 3
			r += int(square.Pix[o])
			g += int(square.Pix[o+1])
			b += int(square.Pix[o+2])
		}
		n := len(pixels)
		if n == 0 {
			continue
		}
		out[id] = led.Color{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
	}
	return out, nil
}

// Calibrate corrects raw colours for a brightness level.
func Calibrate(raw []led.Color, tables *calibration.Tables, level int) ([]led.Color, error) {
	if tables == nil {
		return nil, fmt.Errorf("%w: no calibration tables loaded", led.ErrInvalidLevel)
	}
	return tables.Apply(raw, level)
}

// Dim applies square-law dimming, v*v / (256*dimness), to every channel.
// dimness 1 maps full intensity to 254; larger values dim further.
func Dim(colors []led.Color, dimness float64) ([]led.Color, error) {
	if dimness < 1 {
		return nil, fmt.Errorf("invalid dimness %g: must be at least 1", dimness)
	}
	scale := 256 * dimness
	f := func(v uint8) uint8 { return uint8(float64(v) * float64(v) / scale) }
	out := make([]led.Color, len(colors))
	for i, c := range colors {
		out[i] = led.Color{R: f(c.R), G: f(c.G), B: f(c.B)}
	}
	return out, nil
}

// Raw selects uncalibrated output in Pipeline.Show.
const Raw = -1

// Pipeline turns images into frames on a display. Mask and Tables are
// shared read-only data.
type Pipeline struct {
	Mask    *mask.Mask
	Tables  *calibration.Tables
	Display *display.Display
	// State, when set, is updated with every frame shown.
	State *display.State
}

// Colors converts buf into LED colours. A negative level skips calibration.
func (p *Pipeline) Colors(buf *Buffer, level int) ([]led.Color, error) {
	square, err := Prepare(buf, p.Mask.Size)
	if err != nil {
		return nil, err
	}
	colors, err := Convert(square, p.Mask)
	if err != nil {
		return nil, err
	}
	if level < 0 {
		return colors, nil
	}
	return Calibrate(colors, p.Tables, level)
}

// Show converts buf and sends it as a full frame. It returns the colours
// sent.
func (p *Pipeline) Show(buf *Buffer, level int) ([]led.Color, error) {
	colors, err := p.Colors(buf, level)
	if err != nil {
		return nil, led.NewOpError("show", err)
	}
	if err := p.Display.SetAll(colors); err != nil {
		return nil, err
	}
	if p.State != nil {
		p.State.Replace(colors)
	}
	return colors, nil
}
