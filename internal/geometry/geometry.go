// Package geometry holds the static LED geometry table: where each LED sits
// on the panel and which controller wire position drives it.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/banshee-data/display1593/internal/led"
)

// Placement is the fixed position and wiring of one LED.
type Placement struct {
	ID         led.ID         `json:"id"`
	Controller led.Controller `json:"controller"`
	Local      int            `json:"local"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
}

// Table maps every LED id to its placement. It is immutable after
// construction and safe for concurrent use.
type Table struct {
	width, height float64
	leds          []Placement
	counts        [led.Controllers]int
	byLocal       [led.Controllers][]led.ID
}

// New validates placements and builds a Table. placements must hold exactly
// led.Count entries, entry i describing LED i. The (controller, local) pairs
// must be unique and, per controller, cover [0, n) with no gaps. Controller
// 0 drives the first n0 ids in local order and controller 1 the rest, so
// LED i sits at local i or i-n0.
func New(width, height float64, placements []Placement) (*Table, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid panel size %gx%g", width, height)
	}
	if len(placements) != led.Count {
		return nil, fmt.Errorf("geometry has %d leds, want %d", len(placements), led.Count)
	}

	t := &Table{width: width, height: height, leds: make([]Placement, led.Count)}
	copy(t.leds, placements)

	for i := range t.leds {
		p := &t.leds[i]
		p.ID = led.ID(i)
		if !p.Controller.Valid() {
			return nil, fmt.Errorf("led %d: invalid controller %d", i, p.Controller)
		}
		if p.Local < 0 || p.Local >= led.Count {
			return nil, fmt.Errorf("led %d: local index %d out of range", i, p.Local)
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return nil, fmt.Errorf("led %d: position is not a number", i)
		}
		t.counts[p.Controller]++
	}

	for c := range t.byLocal {
		t.byLocal[c] = make([]led.ID, t.counts[c])
		for i := range t.byLocal[c] {
			t.byLocal[c][i] = -1
		}
	}
	for _, p := range t.leds {
		slots := t.byLocal[p.Controller]
		if p.Local >= len(slots) {
			return nil, fmt.Errorf("led %d: local index %d exceeds controller %d led count %d",
				p.ID, p.Local, p.Controller, len(slots))
		}
		if prev := slots[p.Local]; prev >= 0 {
			return nil, fmt.Errorf("leds %d and %d both map to controller %d local %d",
				prev, p.ID, p.Controller, p.Local)
		}
		slots[p.Local] = p.ID
	}

	split := t.counts[0]
	for _, p := range t.leds {
		want := Placement{Controller: 0, Local: int(p.ID)}
		if int(p.ID) >= split {
			want = Placement{Controller: 1, Local: int(p.ID) - split}
		}
		if p.Controller != want.Controller || p.Local != want.Local {
			return nil, fmt.Errorf("led %d: wired to controller %d local %d, want controller %d local %d",
				p.ID, p.Controller, p.Local, want.Controller, want.Local)
		}
	}
	return t, nil
}

// Lookup returns the placement of id, or ErrInvalidLed.
func (t *Table) Lookup(id led.ID) (Placement, error) {
	if !id.Valid() {
		return Placement{}, fmt.Errorf("%w: %d", led.ErrInvalidLed, id)
	}
	return t.leds[id], nil
}

// Count returns the number of LEDs wired to controller c.
func (t *Table) Count(c led.Controller) int {
	if !c.Valid() {
		return 0
	}
	return t.counts[c]
}

// At returns the LED driven by controller c at local index local.
func (t *Table) At(c led.Controller, local int) (led.ID, bool) {
	if !c.Valid() || local < 0 || local >= t.counts[c] {
		return -1, false
	}
	return t.byLocal[c][local], true
}

// Size returns the physical width and height the coordinates are measured in.
func (t *Table) Size() (width, height float64) {
	return t.width, t.height
}

// All returns a copy of every placement in id order.
func (t *Table) All() []Placement {
	out := make([]Placement, len(t.leds))
	copy(out, t.leds)
	return out
}

type tableFile struct {
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
	Leds   []Placement `json:"leds"`
}

// Load reads a geometry table from a JSON file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry file: %w", err)
	}
	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse geometry JSON: %w", err)
	}
	t, err := New(f.Width, f.Height, f.Leds)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry %s: %w", path, err)
	}
	return t, nil
}

// Save writes the table in the format read by Load.
func (t *Table) Save(path string) error {
	data, err := json.Marshal(tableFile{Width: t.width, Height: t.height, Leds: t.leds})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
