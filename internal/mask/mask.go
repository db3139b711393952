// Package mask holds the pixel-to-LED mask: a partition of a square image's
// pixels among the LEDs, used to super-sample an image onto the irregular
// array.
package mask

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/banshee-data/display1593/internal/led"
)

// DefaultSize is the side of the canonical square image.
const DefaultSize = 256

// Mask assigns every pixel of a Size x Size image to exactly one LED.
// Pixels[id] lists the flattened (y*Size + x) pixel offsets averaged to
// produce LED id. A Mask is read-only once validated.
type Mask struct {
	Size   int       `json:"size"`
	Pixels [][]int32 `json:"leds"`
}

// Validate checks the partition invariant: one list per LED, no empty list,
// and every pixel in exactly one list.
func (m *Mask) Validate() error {
	if m.Size <= 0 {
		return fmt.Errorf("invalid mask size %d", m.Size)
	}
	if len(m.Pixels) != led.Count {
		return fmt.Errorf("mask has %d leds, want %d", len(m.Pixels), led.Count)
	}
	n := m.Size * m.Size
	owner := make([]int32, n)
	for i := range owner {
		owner[i] = -1
	}
	for id, px := range m.Pixels {
		if len(px) == 0 {
			return fmt.Errorf("led %d has no pixels", id)
		}
		for _, p := range px {
			if p < 0 || int(p) >= n {
				return fmt.Errorf("led %d: pixel %d outside %dx%d image", id, p, m.Size, m.Size)
			}
			if prev := owner[p]; prev >= 0 {
				return fmt.Errorf("pixel %d assigned to both led %d and led %d", p, prev, id)
			}
			owner[p] = int32(id)
		}
	}
	for p, o := range owner {
		if o < 0 {
			return fmt.Errorf("pixel %d not assigned to any led", p)
		}
	}
	return nil
}

// Owners returns, for each pixel, the LED it belongs to.
func (m *Mask) Owners() []led.ID {
	owner := make([]led.ID, m.Size*m.Size)
	for id, px := range m.Pixels {
		for _, p := range px {
			owner[p] = led.ID(id)
		}
	}
	return owner
}

// Load reads and validates a mask stored as JSON.
func Load(path string) (*Mask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mask file: %w", err)
	}
	var m Mask
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mask JSON: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mask %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the mask in the format read by Load.
func (m *Mask) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
