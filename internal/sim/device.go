// Package sim emulates the controller firmware in memory. A Device speaks
// the same byte protocol as the hardware, so the controller and display
// packages run unchanged against it.
package sim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/protocol"
)

// ErrClosed is returned by I/O on a closed Device.
var ErrClosed = errors.New("sim: device closed")

// Device is a simulated controller. It implements
// serialmux.TimeoutSerialPorter.
type Device struct {
	mu sync.Mutex

	identity   string
	leds       []led.Color
	brightness uint16
	mute       bool
	closed     bool

	in          []byte
	out         bytes.Buffer
	readTimeout time.Duration

	applied []protocol.Update
	counts  map[string]int
	garbage int
}

// NewDevice returns a device reporting identity with n LEDs, all black.
func NewDevice(identity string, n int) *Device {
	return &Device{
		identity: identity,
		leds:     make([]led.Color, n),
		counts:   make(map[string]int),
	}
}

// NewPair returns devices for both controllers of table, named as the
// hardware names them. The light sensor sits on the first.
func NewPair(table *geometry.Table) [led.Controllers]*Device {
	return [led.Controllers]*Device{
		NewDevice("Teensy1", table.Count(0)),
		NewDevice("Teensy2", table.Count(1)),
	}
}

// SetIdentity changes the identity reported from now on.
func (d *Device) SetIdentity(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identity = id
}

// SetBrightness sets the ambient light reading, clamped to 10 bits.
func (d *Device) SetBrightness(v uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.brightness = min(v, protocol.MaxBrightness)
}

// SetMute stops the device answering any request. Commands are still
// applied.
func (d *Device) SetMute(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mute = mute
}

// Snapshot returns the LED colours by local index.
func (d *Device) Snapshot() []led.Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]led.Color(nil), d.leds...)
}

// Applied returns every single and batch update received, in order.
func (d *Device) Applied() []protocol.Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.Update(nil), d.applied...)
}

// Count returns how many commands with opcode op have been executed.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[op]
}

// ResetCounters forgets recorded updates and command counts.
func (d *Device) ResetCounters() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied = nil
	clear(d.counts)
	d.garbage = 0
}

// Garbage returns the number of bytes skipped because they did not start a
// known command.
func (d *Device) Garbage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.garbage
}

// Write feeds bytes to the command parser. Commands may be split across
// writes.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	d.in = append(d.in, p...)
	d.parse()
	return len(p), nil
}

// Read returns pending reply bytes, waiting up to the read timeout for some
// to appear. A timeout returns (0, nil).
func (d *Device) Read(p []byte) (int, error) {
	deadline := time.Now().Add(d.timeout())
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return 0, ErrClosed
		}
		if d.out.Len() > 0 {
			n, _ := d.out.Read(p)
			d.mu.Unlock()
			return n, nil
		}
		d.mu.Unlock()
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (d *Device) timeout() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readTimeout
}

// SetReadTimeout implements serialmux.TimeoutSerialPorter.
func (d *Device) SetReadTimeout(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readTimeout = t
	return nil
}

// Close closes the device. The LED state survives.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// parse executes every complete command at the head of d.in. Callers hold
// d.mu.
func (d *Device) parse() {
	for len(d.in) > 0 {
		n := d.step()
		if n == 0 {
			d.in = bytes.Clone(d.in)
			return
		}
		d.in = d.in[n:]
	}
	d.in = d.in[:0]
}

// step executes the command at the head of d.in and returns the bytes it
// consumed, or 0 when the command is still incomplete.
func (d *Device) step() int {
	in := d.in
	switch in[0] {
	case 'I':
		if len(in) < 2 {
			return 0
		}
		if in[1] != 'D' {
			d.garbage++
			return 1
		}
		d.counts[protocol.OpIdentify]++
		d.reply([]byte(d.identity + "\n"))
		return 2

	case 'S':
		if len(in) < 6 {
			return 0
		}
		d.counts[protocol.OpSetOne]++
		d.apply(int(binary.BigEndian.Uint16(in[1:3])), led.Color{R: in[3], G: in[4], B: in[5]})
		return 6

	case 'N':
		if len(in) < 3 {
			return 0
		}
		size := int(binary.BigEndian.Uint16(in[1:3]))
		if len(in) < 3+size {
			return 0
		}
		d.counts[protocol.OpBatch]++
		payload := in[3 : 3+size]
		for i := 0; i+protocol.GroupLen <= len(payload); i += protocol.GroupLen {
			g := payload[i : i+protocol.GroupLen]
			d.apply(int(binary.BigEndian.Uint16(g[0:2])), led.Color{R: g[2], G: g[3], B: g[4]})
		}
		return 3 + size

	case 'A':
		size := 1 + 3*len(d.leds)
		if len(in) < size {
			return 0
		}
		d.counts[protocol.OpFrame]++
		for i := range d.leds {
			o := 1 + 3*i
			d.leds[i] = led.Color{R: in[o], G: in[o+1], B: in[o+2]}
		}
		return size

	case 'G':
		if len(in) < 3 {
			return 0
		}
		d.counts[protocol.OpGet]++
		var c led.Color
		if local := int(binary.BigEndian.Uint16(in[1:3])); local < len(d.leds) {
			c = d.leds[local]
		}
		d.reply([]byte{c.R, c.G, c.B})
		return 3

	case 'B':
		d.counts[protocol.OpBrightness]++
		d.reply(binary.BigEndian.AppendUint16(nil, d.brightness))
		return 1

	case 'C':
		if len(in) < 3 {
			return 0
		}
		if string(in[:3]) != protocol.OpClear {
			d.garbage++
			return 1
		}
		d.counts[protocol.OpClear]++
		clear(d.leds)
		return 3

	case '\r', '\n':
		return 1
	}
	d.garbage++
	return 1
}

func (d *Device) apply(local int, c led.Color) {
	d.applied = append(d.applied, protocol.Update{Local: local, Color: c})
	if local < len(d.leds) {
		d.leds[local] = c
	}
}

func (d *Device) reply(b []byte) {
	if d.mute {
		return
	}
	d.out.Write(b)
}
