package imaging

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
	"periph.io/x/conn/v3/display"
)

// Drawer exposes a Pipeline as a periph display.Drawer so drawing code
// written for periph devices can target the LED array. Its surface is the
// mask's square canvas; every Draw sends a full frame.
type Drawer struct {
	mu       sync.Mutex
	pipeline *Pipeline
	level    int
	canvas   *image.RGBA
}

// NewDrawer returns a Drawer showing frames at level (Raw for none).
func NewDrawer(p *Pipeline, level int) *Drawer {
	n := p.Mask.Size
	return &Drawer{pipeline: p, level: level, canvas: image.NewRGBA(image.Rect(0, 0, n, n))}
}

// String implements conn.Resource.
func (d *Drawer) String() string { return "display1593" }

// Halt implements conn.Resource. It clears the array and the canvas.
func (d *Drawer) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.canvas.Pix)
	err := d.pipeline.Display.Clear()
	if err == nil && d.pipeline.State != nil {
		d.pipeline.State.Reset()
	}
	return err
}

// ColorModel implements display.Drawer.
func (d *Drawer) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements display.Drawer.
func (d *Drawer) Bounds() image.Rectangle { return d.canvas.Bounds() }

// Draw implements display.Drawer.
func (d *Drawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	draw.Draw(d.canvas, r.Intersect(d.canvas.Bounds()), src, sp, draw.Src)
	_, err := d.pipeline.Show(FromImage(d.canvas), d.level)
	return err
}

var _ display.Drawer = &Drawer{}
