package calibration

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/display1593/internal/led"
)

func TestGammaTablesAreMonotonic(t *testing.T) {
	tables := Gamma(12, 2.2, 255)
	require.NoError(t, tables.Validate())

	for level := 0; level < tables.NumLevels(); level++ {
		var prev led.Color
		for raw := 0; raw < 256; raw++ {
			v := uint8(raw)
			got, err := tables.Correct(led.Color{R: v, G: v, B: v}, level)
			require.NoError(t, err)
			if got.R < prev.R || got.G < prev.G || got.B < prev.B {
				t.Fatalf("level %d: raw %d corrected to %v, below %v", level, raw, got, prev)
			}
			prev = got
		}
	}
}

func TestApplyUsesQuantisedIndex(t *testing.T) {
	tables := &Tables{Shift: DefaultShift, Levels: []Level{identityLevel()}}
	out, err := tables.Apply([]led.Color{{R: 0, G: 15, B: 255}}, 0)
	require.NoError(t, err)
	// raw/8 indexes the lookup; the identity level stores the index itself.
	assert.Equal(t, led.Color{R: 0, G: 1, B: 31}, out[0])
}

func TestApplyInvalidLevel(t *testing.T) {
	tables := Gamma(3, 2, 200)
	for _, level := range []int{-1, 3, 100} {
		_, err := tables.Apply([]led.Color{{}}, level)
		if !errors.Is(err, led.ErrInvalidLevel) {
			t.Errorf("Apply level %d: error = %v, want ErrInvalidLevel", level, err)
		}
	}
}

func TestValidateRejectsDecreasingLookup(t *testing.T) {
	lv := identityLevel()
	lv.G[10] = 0
	tables := &Tables{Shift: DefaultShift, Levels: []Level{lv}}
	assert.Error(t, tables.Validate())
}

func TestValidateRejectsWrongLength(t *testing.T) {
	lv := identityLevel()
	lv.B = lv.B[:5]
	tables := &Tables{Shift: DefaultShift, Levels: []Level{lv}}
	assert.Error(t, tables.Validate())
}

func TestSaveLoad(t *testing.T) {
	tables := Gamma(4, 1.8, 220)
	path := filepath.Join(t.TempDir(), "cal.json")
	require.NoError(t, tables.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tables, loaded)
}

func TestThresholdsLevelFor(t *testing.T) {
	cases := []struct {
		reading float64
		want    int
	}{
		{0, 0},
		{4.49, 0},
		{4.5, 1},
		{4.6, 1},
		{12.2323, 2},
		{100, 4},
		{269434, 11},
		{1e9, 11},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DefaultThresholds.LevelFor(c.reading), "reading %g", c.reading)
	}
}

func TestSmoother(t *testing.T) {
	s := NewSmoother(0.1)
	s.Seed([]float64{10, 20, 30})
	assert.InDelta(t, 20, s.Value(), 1e-9)
	got := s.Add(120)
	assert.InDelta(t, 30, got, 1e-9)

	fresh := NewSmoother(0)
	assert.InDelta(t, 7, fresh.Add(7), 1e-9)
	assert.False(t, math.IsNaN(fresh.Value()))
}

func identityLevel() Level {
	curve := make(Curve, 32)
	for i := range curve {
		curve[i] = uint8(i)
	}
	return Level{R: curve, G: append(Curve(nil), curve...), B: append(Curve(nil), curve...)}
}
