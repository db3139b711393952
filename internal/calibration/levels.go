package calibration

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Thresholds maps a light sensor reading to a calibration level: level i is
// selected while the reading is below Thresholds[i], so a reading equal to
// Thresholds[i] already selects level i+1. Readings at or above the last
// threshold select the brightest level.
type Thresholds []float64

// DefaultThresholds spans twelve levels on a roughly exponential scale.
var DefaultThresholds = Thresholds{
	4.5, 12.2323, 33.2508, 90.3849, 245.692, 667.859,
	1815.43, 4934.85, 13414.3, 36463.9, 99119.1, 269434,
}

// LevelFor returns the calibration level for reading.
func (th Thresholds) LevelFor(reading float64) int {
	if len(th) == 0 {
		return 0
	}
	i := sort.Search(len(th), func(i int) bool { return th[i] > reading })
	if i == len(th) {
		return len(th) - 1
	}
	return i
}

// DefaultAlpha is the smoothing factor applied to each new sensor reading.
const DefaultAlpha = 0.1

// Smoother keeps an exponentially weighted moving average of sensor
// readings so that brief shadows do not flip the display level.
type Smoother struct {
	mu     sync.Mutex
	alpha  float64
	value  float64
	seeded bool
}

// NewSmoother returns a Smoother using alpha, or DefaultAlpha when alpha is
// not in (0, 1].
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Seed resets the average to the mean of readings.
func (s *Smoother) Seed(readings []float64) {
	if len(readings) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = stat.Mean(readings, nil)
	s.seeded = true
}

// Add folds reading into the average and returns the new value. The first
// reading of an unseeded Smoother becomes the average.
func (s *Smoother) Add(reading float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		s.value = reading
		s.seeded = true
		return s.value
	}
	s.value = s.alpha*reading + (1-s.alpha)*s.value
	return s.value
}

// Value returns the current average.
func (s *Smoother) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
