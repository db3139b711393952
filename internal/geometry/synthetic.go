package geometry

import (
	"math"

	"github.com/banshee-data/display1593/internal/led"
)

// SyntheticSize is the side, in millimetres, of the panel produced by
// Synthetic.
const SyntheticSize = 1000.0

// Synthetic builds a deterministic irregular layout: a sunflower
// (phyllotaxis) spiral, denser in the middle than at the edges. The first
// split LEDs are wired to controller 0, the rest to controller 1. It stands
// in for the measured table when running against simulated controllers.
func Synthetic(split int) *Table {
	if split < 0 {
		split = 0
	}
	if split > led.Count {
		split = led.Count
	}
	golden := math.Pi * (3 - math.Sqrt(5))
	half := SyntheticSize / 2
	placements := make([]Placement, led.Count)
	for i := range placements {
		// An exponent of 0.5 would give uniform density; 0.6 packs the centre.
		r := half * 0.98 * math.Pow(float64(i)/float64(led.Count), 0.6)
		theta := float64(i) * golden
		p := Placement{
			X: half + r*math.Cos(theta),
			Y: half + r*math.Sin(theta),
		}
		if i < split {
			p.Controller, p.Local = 0, i
		} else {
			p.Controller, p.Local = 1, i-split
		}
		placements[i] = p
	}
	t, err := New(SyntheticSize, SyntheticSize, placements)
	if err != nil {
		panic("geometry: synthetic layout is invalid: " + err.Error())
	}
	return t
}
