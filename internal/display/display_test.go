package display

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/display1593/internal/controller"
	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/monitoring"
	"github.com/banshee-data/display1593/internal/protocol"
	"github.com/banshee-data/display1593/internal/sim"
)

const (
	split       = 800
	readTimeout = 50 * time.Millisecond
)

var table = geometry.Synthetic(split)

func init() {
	monitoring.SetLogger(nil)
}

type rig struct {
	display *Display
	devices [led.Controllers]*sim.Device // indexed by controller
}

// newRig opens a display over simulated controllers. When swapped the links
// are handed to Open in reverse order.
func newRig(t *testing.T, swapped bool, opts Options) rig {
	t.Helper()
	devs := sim.NewPair(table)
	links := []*controller.Link{
		controller.Attach("/dev/ttyACM0", devs[0], readTimeout),
		controller.Attach("/dev/ttyACM1", devs[1], readTimeout),
	}
	if swapped {
		links[0], links[1] = links[1], links[0]
	}
	d, err := Open(table, links, opts)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return rig{display: d, devices: devs}
}

func (r rig) resetCounters() {
	for _, dev := range r.devices {
		dev.ResetCounters()
	}
}

func TestOpenResolvesEitherOrder(t *testing.T) {
	for _, swapped := range []bool{false, true} {
		r := newRig(t, swapped, Options{})
		assert.Equal(t, DefaultIdentities, r.display.Identities())

		c := led.Color{R: 1, G: 2, B: 3}
		require.NoError(t, r.display.SetOne(led.ID(split+5), c))
		assert.Equal(t, c, r.devices[1].Snapshot()[5], "swapped=%v", swapped)
		assert.Equal(t, 0, r.devices[0].Count(protocol.OpSetOne))
	}
}

func TestOpenRejectsWrongPair(t *testing.T) {
	for _, ids := range [][2]string{{"Teensy1", "Teensy1"}, {"Teensy1", "Teensy3"}} {
		a := sim.NewDevice(ids[0], split)
		b := sim.NewDevice(ids[1], led.Count-split)
		_, err := Open(table, []*controller.Link{
			controller.Attach("a", a, readTimeout),
			controller.Attach("b", b, readTimeout),
		}, Options{})
		assert.ErrorIs(t, err, led.ErrPairing, "identities %v", ids)
	}
}

func TestOpenFailsOnSilentController(t *testing.T) {
	devs := sim.NewPair(table)
	devs[1].SetMute(true)
	_, err := Open(table, []*controller.Link{
		controller.Attach("a", devs[0], readTimeout),
		controller.Attach("b", devs[1], readTimeout),
	}, Options{})
	assert.ErrorIs(t, err, led.ErrTimeout)
}

func TestSetOneRejectsInvalidLed(t *testing.T) {
	r := newRig(t, false, Options{})
	r.resetCounters()
	for _, id := range []led.ID{-1, led.Count, 5000} {
		assert.ErrorIs(t, r.display.SetOne(id, led.Black), led.ErrInvalidLed)
	}
	assert.Zero(t, r.devices[0].Count(protocol.OpSetOne)+r.devices[1].Count(protocol.OpSetOne))
}

func TestSetManyValidatesBeforeSending(t *testing.T) {
	r := newRig(t, false, Options{})
	r.resetCounters()

	err := r.display.SetMany([]led.ID{1, 2}, []led.Color{{}})
	assert.ErrorIs(t, err, led.ErrLengthMismatch)

	err = r.display.SetMany([]led.ID{1, 900, led.Count}, make([]led.Color, 3))
	assert.ErrorIs(t, err, led.ErrInvalidLed)

	for _, dev := range r.devices {
		assert.Zero(t, dev.Count(protocol.OpBatch), "no traffic expected after validation failure")
	}
}

func TestSetManyMatchesSetOne(t *testing.T) {
	ids := []led.ID{0, 1500, 799, 800, 3, 1592, 42}
	colors := make([]led.Color, len(ids))
	for i := range colors {
		colors[i] = led.Color{R: uint8(i * 30), G: uint8(i), B: 200}
	}

	batch := newRig(t, false, Options{})
	batch.resetCounters()
	require.NoError(t, batch.display.SetMany(ids, colors))

	single := newRig(t, false, Options{})
	single.resetCounters()
	for i, id := range ids {
		require.NoError(t, single.display.SetOne(id, colors[i]))
	}

	for c := range led.Controllers {
		got := batch.devices[c].Applied()
		want := single.devices[c].Applied()
		sortUpdates(got)
		sortUpdates(want)
		assert.Equal(t, want, got, "controller %d", c)
		assert.Equal(t, 1, batch.devices[c].Count(protocol.OpBatch))
	}
}

func sortUpdates(u []protocol.Update) {
	slices.SortFunc(u, func(a, b protocol.Update) int { return a.Local - b.Local })
}

func TestSetManySkipsIdleController(t *testing.T) {
	r := newRig(t, false, Options{})
	r.resetCounters()
	require.NoError(t, r.display.SetMany([]led.ID{1, 2, 3}, make([]led.Color, 3)))
	assert.Equal(t, 1, r.devices[0].Count(protocol.OpBatch))
	assert.Equal(t, 0, r.devices[1].Count(protocol.OpBatch))
}

func TestSetAllUniformFrame(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		r := newRig(t, true, Options{Concurrent: concurrent})
		c := led.Color{R: 12, G: 34, B: 56}
		require.NoError(t, r.display.SetAll(led.Fill(led.Count, c)))
		for i, dev := range r.devices {
			snap := dev.Snapshot()
			assert.Len(t, snap, table.Count(led.Controller(i)))
			for _, got := range snap {
				if got != c {
					t.Fatalf("controller %d: got %v, want %v", i, got, c)
				}
			}
			assert.Equal(t, 1, dev.Count(protocol.OpFrame))
		}
	}
}

func TestSetAllOrdersByLocalIndex(t *testing.T) {
	r := newRig(t, false, Options{})
	colors := make([]led.Color, led.Count)
	for i := range colors {
		colors[i] = led.Clamp(i%256, i/256, 7)
	}
	require.NoError(t, r.display.SetAll(colors))
	for _, p := range table.All() {
		assert.Equal(t, colors[p.ID], r.devices[p.Controller].Snapshot()[p.Local])
	}
}

func TestSetAllWrongLength(t *testing.T) {
	r := newRig(t, false, Options{})
	assert.ErrorIs(t, r.display.SetAll(make([]led.Color, 10)), led.ErrWrongLength)
}

func TestClearAndGetOne(t *testing.T) {
	r := newRig(t, false, Options{})
	c := led.Color{R: 200, G: 100, B: 50}
	require.NoError(t, r.display.SetOne(1000, c))

	got, err := r.display.GetOne(1000)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	require.NoError(t, r.display.Clear())
	got, err = r.display.GetOne(1000)
	require.NoError(t, err)
	assert.Equal(t, led.Black, got)
	for _, dev := range r.devices {
		assert.Equal(t, 1, dev.Count(protocol.OpClear))
	}
}

func TestGetOneTimeout(t *testing.T) {
	r := newRig(t, false, Options{})
	r.devices[0].SetMute(true)

	start := time.Now()
	_, err := r.display.GetOne(10)
	assert.ErrorIs(t, err, led.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	var opErr *led.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, led.Controller(0), opErr.Controller)
	assert.Equal(t, led.ID(10), opErr.Led)
}

func TestGetBrightness(t *testing.T) {
	r := newRig(t, true, Options{})
	r.devices[0].SetBrightness(612)
	v, err := r.display.GetBrightness()
	require.NoError(t, err)
	assert.Equal(t, uint16(612), v)
	assert.Zero(t, r.devices[1].Count(protocol.OpBrightness))
}

func TestGetBrightnessNoSensor(t *testing.T) {
	r := newRig(t, false, Options{SensorIdentity: "Teensy9"})
	_, err := r.display.GetBrightness()
	assert.ErrorIs(t, err, led.ErrNoSensor)
}

func TestVerify(t *testing.T) {
	r := newRig(t, false, Options{})
	require.NoError(t, r.display.Verify())

	r.devices[1].SetIdentity("Teensy7")
	err := r.display.Verify()
	require.Error(t, err)
	assert.Equal(t, controller.Verified, r.display.Link(0).State())
	assert.Equal(t, controller.Failed, r.display.Link(1).State())
	assert.ErrorIs(t, r.display.SetOne(900, led.Black), led.ErrNotVerified)
}

func TestUpdateSendsOnlyChanges(t *testing.T) {
	r := newRig(t, false, Options{})
	state := NewState()
	next := led.Fill(led.Count, led.Black)
	next[3] = led.Color{R: 1}
	next[1200] = led.Color{G: 1}

	r.resetCounters()
	n, err := r.display.Update(state, next)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, r.devices[0].Applied(), 1)
	assert.Len(t, r.devices[1].Applied(), 1)

	n, err = r.display.Update(state, next)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, next, state.Colors())
}

func TestStateDiffWrongLength(t *testing.T) {
	_, _, err := NewState().Diff(nil)
	assert.ErrorIs(t, err, led.ErrWrongLength)
}
