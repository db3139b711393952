// Package calibration corrects raw LED intensities for the non-linear
// response of the LEDs at a set of discrete brightness levels, and maps light
// sensor readings to those levels.
package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/banshee-data/display1593/internal/led"
)

// DefaultShift quantises raw 0-255 intensities into 32 steps (raw/8).
const DefaultShift = 3

// Curve is a per-channel lookup. It marshals as a JSON number array rather
// than base64 so calibration files stay hand-editable.
type Curve []uint8

// MarshalJSON implements json.Marshaler.
func (c Curve) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(c))
	for i, v := range c {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

// Level holds one lookup per channel, indexed by raw intensity >> Shift.
type Level struct {
	R Curve `json:"r"`
	G Curve `json:"g"`
	B Curve `json:"b"`
}

// Tables is the full set of calibration levels. Level 0 is the dimmest.
type Tables struct {
	Shift  uint    `json:"shift"`
	Levels []Level `json:"levels"`
}

// Steps returns the number of entries in each channel lookup.
func (t *Tables) Steps() int {
	return 256 >> t.Shift
}

// NumLevels returns the number of configured brightness levels.
func (t *Tables) NumLevels() int {
	return len(t.Levels)
}

// Validate checks the table shape and that every channel lookup is
// monotonic non-decreasing.
func (t *Tables) Validate() error {
	if t.Shift > 7 {
		return fmt.Errorf("invalid shift %d", t.Shift)
	}
	if len(t.Levels) == 0 {
		return fmt.Errorf("no calibration levels")
	}
	steps := t.Steps()
	for i, lv := range t.Levels {
		for _, ch := range []struct {
			name string
			vals Curve
		}{{"r", lv.R}, {"g", lv.G}, {"b", lv.B}} {
			if len(ch.vals) != steps {
				return fmt.Errorf("level %d channel %s has %d entries, want %d", i, ch.name, len(ch.vals), steps)
			}
			for j := 1; j < len(ch.vals); j++ {
				if ch.vals[j] < ch.vals[j-1] {
					return fmt.Errorf("level %d channel %s decreases at step %d (%d -> %d)",
						i, ch.name, j, ch.vals[j-1], ch.vals[j])
				}
			}
		}
	}
	return nil
}

// correct maps one raw colour through lv without range checks.
func (t *Tables) correct(c led.Color, lv *Level) led.Color {
	return led.Color{
		R: lv.R[c.R>>t.Shift],
		G: lv.G[c.G>>t.Shift],
		B: lv.B[c.B>>t.Shift],
	}
}

// Correct maps a single colour through the lookup of level.
func (t *Tables) Correct(c led.Color, level int) (led.Color, error) {
	if level < 0 || level >= len(t.Levels) {
		return led.Color{}, fmt.Errorf("%w: %d not in [0,%d)", led.ErrInvalidLevel, level, len(t.Levels))
	}
	return t.correct(c, &t.Levels[level]), nil
}

// Apply returns a new slice with every raw colour corrected for level.
func (t *Tables) Apply(raw []led.Color, level int) ([]led.Color, error) {
	if level < 0 || level >= len(t.Levels) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", led.ErrInvalidLevel, level, len(t.Levels))
	}
	lv := &t.Levels[level]
	out := make([]led.Color, len(raw))
	for i, c := range raw {
		out[i] = t.correct(c, lv)
	}
	return out, nil
}

// Load reads and validates calibration tables from a JSON file.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}
	var t Tables
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration %s: %w", path, err)
	}
	return &t, nil
}

// Save writes the tables in the format read by Load.
func (t *Tables) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Gamma generates monotonic tables for levels brightness levels. Level i
// peaks at peak * (i+1)/levels and follows out = peak_i * in^gamma. It is
// used when no measured tables are available, e.g. against simulated
// controllers.
func Gamma(levels int, gamma float64, peak uint8) *Tables {
	t := &Tables{Shift: DefaultShift, Levels: make([]Level, levels)}
	steps := t.Steps()
	for i := range t.Levels {
		top := float64(peak) * float64(i+1) / float64(levels)
		curve := make(Curve, steps)
		for j := range curve {
			in := float64(j) / float64(steps-1)
			curve[j] = uint8(math.Round(top * math.Pow(in, gamma)))
		}
		t.Levels[i] = Level{
			R: curve,
			G: append(Curve(nil), curve...),
			B: append(Curve(nil), curve...),
		}
	}
	return t
}
