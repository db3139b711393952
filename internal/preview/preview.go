// Package preview renders LED state without hardware: a PNG of the array
// drawn with gonum/plot and an interactive go-echarts scatter page.
package preview

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
)

// Boost lifts dim values so low-level frames stay visible on a monitor:
// (2^24 * v)^(1/4), saturated at 255. Boost(0) is 0 and Boost(255) is 255.
func Boost(v uint8) uint8 {
	b := math.Pow(16777216*float64(v), 0.25) + 1e-9
	if b >= 255 {
		return 255
	}
	return uint8(b)
}

// BoostColor applies Boost to every channel.
func BoostColor(c led.Color) led.Color {
	return led.Color{R: Boost(c.R), G: Boost(c.G), B: Boost(c.B)}
}

func checkColors(colors []led.Color) error {
	if len(colors) != led.Count {
		return fmt.Errorf("%w: %d colors, want %d", led.ErrWrongLength, len(colors), led.Count)
	}
	return nil
}

// points returns LED centres with y flipped so the plot matches image
// orientation.
func points(table *geometry.Table) plotter.XYs {
	_, h := table.Size()
	all := table.All()
	xys := make(plotter.XYs, len(all))
	for i, p := range all {
		xys[i] = plotter.XY{X: p.X, Y: h - p.Y}
	}
	return xys
}

// RenderPNG writes a size x size point PNG of colors, indexed by LED id,
// drawn as discs at their physical positions on black.
func RenderPNG(w io.Writer, table *geometry.Table, colors []led.Color, size int, boost bool) error {
	if err := checkColors(colors); err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("invalid preview size %d", size)
	}

	p := plot.New()
	p.BackgroundColor = color.Black
	p.HideAxes()
	width, height := table.Size()
	p.X.Min, p.X.Max = 0, width
	p.Y.Min, p.Y.Max = 0, height

	s, err := plotter.NewScatter(points(table))
	if err != nil {
		return fmt.Errorf("failed to build scatter: %w", err)
	}
	// Roughly 80% of the mean LED pitch.
	pitch := math.Sqrt(width*height/led.Count) / math.Max(width, height)
	radius := vg.Points(math.Max(1, 0.4*pitch*float64(size)))
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c := colors[i]
		if boost {
			c = BoostColor(c)
		}
		return draw.GlyphStyle{
			Color:  color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255},
			Radius: radius,
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(s)

	wt, err := p.WriterTo(vg.Points(float64(size)), vg.Points(float64(size)), "png")
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}
