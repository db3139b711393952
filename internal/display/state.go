package display

import (
	"fmt"
	"sync"

	"github.com/banshee-data/display1593/internal/led"
)

// State caches the last colour sent to every LED so callers can send only
// what changed. It starts all black, matching a freshly cleared array.
type State struct {
	mu     sync.Mutex
	colors [led.Count]led.Color
}

// NewState returns an all-black State.
func NewState() *State {
	return &State{}
}

// Colors returns a copy of the cached colours indexed by LED id.
func (s *State) Colors() []led.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]led.Color(nil), s.colors[:]...)
}

// Diff returns the LEDs whose colour in next differs from the cache.
func (s *State) Diff(next []led.Color) ([]led.ID, []led.Color, error) {
	if len(next) != led.Count {
		return nil, nil, fmt.Errorf("%w: %d colors, want %d", led.ErrWrongLength, len(next), led.Count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []led.ID
	var colors []led.Color
	for i, c := range next {
		if s.colors[i] != c {
			ids = append(ids, led.ID(i))
			colors = append(colors, c)
		}
	}
	return ids, colors, nil
}

// Commit records colours as sent. ids must be valid.
func (s *State) Commit(ids []led.ID, colors []led.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		s.colors[id] = colors[i]
	}
}

// Replace records a full frame as sent.
func (s *State) Replace(colors []led.Color) error {
	if len(colors) != led.Count {
		return fmt.Errorf("%w: %d colors, want %d", led.ErrWrongLength, len(colors), led.Count)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.colors[:], colors)
	return nil
}

// Reset records the array as cleared.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors = [led.Count]led.Color{}
}

// Update sends only the LEDs whose colour differs from state and records
// them once the send succeeds. It returns the number of LEDs sent.
func (d *Display) Update(state *State, next []led.Color) (int, error) {
	ids, colors, err := state.Diff(next)
	if err != nil {
		return 0, led.NewOpError("update", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := d.SetMany(ids, colors); err != nil {
		return 0, err
	}
	state.Commit(ids, colors)
	return len(ids), nil
}
