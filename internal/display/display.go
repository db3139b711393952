// Package display drives the two controllers as one logical LED array.
//
// Every operation validates its input completely before the first byte is
// written, so a rejected call never leaves the array partially updated.
// Wire failures are reported per call and never retried here.
package display

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/display1593/internal/controller"
	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/monitoring"
	"github.com/banshee-data/display1593/internal/protocol"
)

var logf = monitoring.Prefixed("display: ")

// DefaultIdentities is the expected identity pair, in controller order.
var DefaultIdentities = [led.Controllers]string{"Teensy1", "Teensy2"}

// DefaultSensorIdentity names the controller wired to the light sensor.
const DefaultSensorIdentity = "Teensy1"

// Options configures a Display. The zero value uses the defaults.
type Options struct {
	// Identities lists the identity expected from controller 0 and 1.
	Identities [led.Controllers]string
	// SensorIdentity selects the controller answering brightness queries.
	SensorIdentity string
	// Concurrent issues commands for the two controllers in parallel.
	Concurrent bool
}

func (o Options) withDefaults() Options {
	if o.Identities == [led.Controllers]string{} {
		o.Identities = DefaultIdentities
	}
	if o.SensorIdentity == "" {
		o.SensorIdentity = DefaultSensorIdentity
	}
	return o
}

// Display is the logical LED array. It owns both links.
type Display struct {
	table *geometry.Table
	links [led.Controllers]*controller.Link
	opts  Options

	closeOnce sync.Once
	closeErr  error
}

// Open connects any link that is not yet verified and resolves which link
// drives which controller. Links may be passed in either order; they are
// swapped when they identify as the reversed pair. Any other pair fails with
// led.ErrPairing. On failure every link is closed.
func Open(table *geometry.Table, links []*controller.Link, opts Options) (*Display, error) {
	opts = opts.withDefaults()
	if len(links) != led.Controllers {
		return nil, led.NewOpError("open", fmt.Errorf("%w: got %d links, want %d", led.ErrPairing, len(links), led.Controllers))
	}

	d := &Display{table: table, opts: opts}
	copy(d.links[:], links)

	err := d.each(func(c led.Controller, l *controller.Link) error {
		return l.Connect()
	})
	if err == nil {
		err = d.pair()
	}
	if err != nil {
		d.Close()
		return nil, err
	}
	logf("controller 0 is %s on %s, controller 1 is %s on %s",
		d.links[0].Identity(), d.links[0].Path(), d.links[1].Identity(), d.links[1].Path())
	return d, nil
}

func (d *Display) pair() error {
	got := [led.Controllers]string{d.links[0].Identity(), d.links[1].Identity()}
	want := d.opts.Identities
	switch {
	case got == want:
		return nil
	case got[0] == want[1] && got[1] == want[0]:
		logf("controllers discovered in reverse order, swapping")
		d.links[0], d.links[1] = d.links[1], d.links[0]
		return nil
	}
	return led.NewOpError("open", fmt.Errorf("%w: got %q, want %q", led.ErrPairing, got[:], want[:]))
}

// Table returns the geometry the display addresses LEDs with.
func (d *Display) Table() *geometry.Table { return d.table }

// Identities returns the identity of controller 0 and 1.
func (d *Display) Identities() [led.Controllers]string {
	return [led.Controllers]string{d.links[0].Identity(), d.links[1].Identity()}
}

// SensorIdentity returns the identity of the controller carrying the light
// sensor.
func (d *Display) SensorIdentity() string { return d.opts.SensorIdentity }

// Link returns the link driving controller c.
func (d *Display) Link(c led.Controller) *controller.Link { return d.links[c] }

// annotate attaches the controller and LED to a link error.
func annotate(err error, c led.Controller, id led.ID) error {
	var opErr *led.OpError
	if errors.As(err, &opErr) {
		opErr.Controller = c
		opErr.Led = id
	}
	return err
}

// each runs fn for both controllers, concurrently when configured, and
// joins the errors. A failure on one controller does not stop the other.
func (d *Display) each(fn func(c led.Controller, l *controller.Link) error) error {
	var errs [led.Controllers]error
	if d.opts.Concurrent {
		var g errgroup.Group
		for i, l := range d.links {
			g.Go(func() error {
				errs[i] = fn(led.Controller(i), l)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, l := range d.links {
			errs[i] = fn(led.Controller(i), l)
		}
	}
	return errors.Join(errs[:]...)
}

// SetOne sets a single LED.
func (d *Display) SetOne(id led.ID, c led.Color) error {
	p, err := d.table.Lookup(id)
	if err != nil {
		return led.NewOpError("set_one", err)
	}
	frame, err := protocol.SetOne(p.Local, c)
	if err != nil {
		return led.NewOpError("set_one", err)
	}
	return annotate(d.links[p.Controller].Send("set_one", frame), p.Controller, id)
}

// SetMany sets the listed LEDs with one batch command per controller.
// Controllers owning none of the ids receive no traffic.
func (d *Display) SetMany(ids []led.ID, colors []led.Color) error {
	if len(ids) != len(colors) {
		return led.NewOpError("set_many", fmt.Errorf("%w: %d ids, %d colors", led.ErrLengthMismatch, len(ids), len(colors)))
	}
	var updates [led.Controllers][]protocol.Update
	for i, id := range ids {
		p, err := d.table.Lookup(id)
		if err != nil {
			return led.NewOpError("set_many", err)
		}
		updates[p.Controller] = append(updates[p.Controller], protocol.Update{Local: p.Local, Color: colors[i]})
	}
	var batches [led.Controllers][][]byte
	for c := range updates {
		cmds, err := protocol.Batch(updates[c])
		if err != nil {
			return led.NewOpError("set_many", err)
		}
		batches[c] = cmds
	}
	return d.each(func(c led.Controller, l *controller.Link) error {
		for _, cmd := range batches[c] {
			if err := l.Send("set_many", cmd); err != nil {
				return annotate(err, c, -1)
			}
		}
		return nil
	})
}

// SetAll sends a full frame to each controller. colors is indexed by LED id.
func (d *Display) SetAll(colors []led.Color) error {
	if len(colors) != led.Count {
		return led.NewOpError("set_all", fmt.Errorf("%w: %d colors, want %d", led.ErrWrongLength, len(colors), led.Count))
	}
	var frames [led.Controllers][]byte
	for c := range frames {
		ctrl := led.Controller(c)
		local := make([]led.Color, d.table.Count(ctrl))
		for i := range local {
			id, _ := d.table.At(ctrl, i)
			local[i] = colors[id]
		}
		frames[c] = protocol.Frame(local)
	}
	return d.each(func(c led.Controller, l *controller.Link) error {
		return annotate(l.Send("set_all", frames[c]), c, -1)
	})
}

// Clear turns every LED off.
func (d *Display) Clear() error {
	return d.each(func(c led.Controller, l *controller.Link) error {
		return annotate(l.Send("clear", protocol.Clear()), c, -1)
	})
}

// GetOne asks the owning controller for the colour of id. It fails with
// led.ErrTimeout if no reply arrives within the link read timeout.
func (d *Display) GetOne(id led.ID) (led.Color, error) {
	p, err := d.table.Lookup(id)
	if err != nil {
		return led.Color{}, led.NewOpError("get_one", err)
	}
	frame, err := protocol.Get(p.Local)
	if err != nil {
		return led.Color{}, led.NewOpError("get_one", err)
	}
	reply, err := d.links[p.Controller].Query("get_one", frame, protocol.ColorReplyLen)
	if err != nil {
		return led.Color{}, annotate(err, p.Controller, id)
	}
	return protocol.DecodeColor([protocol.ColorReplyLen]byte(reply)), nil
}

// GetBrightness reads the ambient light sensor on the controller whose
// identity matches Options.SensorIdentity.
func (d *Display) GetBrightness() (uint16, error) {
	c := slices.IndexFunc(d.links[:], func(l *controller.Link) bool {
		return l.Identity() == d.opts.SensorIdentity
	})
	if c < 0 {
		return 0, led.NewOpError("get_brightness", fmt.Errorf("%w: want %q", led.ErrNoSensor, d.opts.SensorIdentity))
	}
	reply, err := d.links[c].Query("get_brightness", protocol.Brightness(), protocol.BrightnessReplyLen)
	if err != nil {
		return 0, annotate(err, led.Controller(c), -1)
	}
	return protocol.DecodeBrightness([protocol.BrightnessReplyLen]byte(reply)), nil
}

// Verify repeats the identity exchange on both links. A link that fails is
// left in the Failed state; the caller decides whether to reopen.
func (d *Display) Verify() error {
	return d.each(func(c led.Controller, l *controller.Link) error {
		return annotate(l.Verify(), c, -1)
	})
}

// Close closes both links. Further calls return the first result.
func (d *Display) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		for _, l := range d.links {
			if l != nil {
				errs = append(errs, l.Close())
			}
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}
