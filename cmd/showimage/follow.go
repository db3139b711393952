package main

import (
	"fmt"
	"log"

	"github.com/banshee-data/display1593/internal/calibration"
)

type sensor interface {
	GetBrightness() (uint16, error)
}

// follower re-shows the image whenever the smoothed light reading crosses
// into a different calibration level.
type follower struct {
	sensor     sensor
	show       func(level int) error
	smoother   *calibration.Smoother
	thresholds calibration.Thresholds
	maxLevel   int

	level int
	shown bool
}

// seed averages n readings into the smoother.
func (f *follower) seed(n int) error {
	readings := make([]float64, 0, n)
	for range n {
		v, err := f.sensor.GetBrightness()
		if err != nil {
			return fmt.Errorf("failed to read sensor: %w", err)
		}
		readings = append(readings, float64(v))
	}
	f.smoother.Seed(readings)
	return nil
}

// step takes one reading and shows the image if the level changed or it was
// never shown.
func (f *follower) step() error {
	v, err := f.sensor.GetBrightness()
	if err != nil {
		return fmt.Errorf("failed to read sensor: %w", err)
	}
	smoothed := f.smoother.Add(float64(v))
	level := min(f.thresholds.LevelFor(smoothed), f.maxLevel)
	if f.shown && level == f.level {
		return nil
	}
	log.Printf("brightness %.1f, showing at level %d", smoothed, level)
	if err := f.show(level); err != nil {
		return err
	}
	f.level, f.shown = level, true
	return nil
}
