// Package testutil provides shared test helpers and fixtures: a synthetic
// geometry, masks built from it and displays backed by simulated
// controllers.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/display1593/internal/controller"
	"github.com/banshee-data/display1593/internal/display"
	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/mask"
	"github.com/banshee-data/display1593/internal/sim"
)

const (
	// Split is the number of LEDs on controller 0 in the fixture geometry.
	Split = 800
	// ReadTimeout keeps timeout paths fast in tests.
	ReadTimeout = 50 * time.Millisecond
)

var (
	table = sync.OnceValue(func() *geometry.Table { return geometry.Synthetic(Split) })

	masksMu sync.Mutex
	masks   = map[int]*mask.Mask{}
)

// Table returns the shared synthetic geometry. Callers must not modify it.
func Table() *geometry.Table {
	return table()
}

// Mask returns a mask of the given size built from Table. Masks are built
// once per size and shared.
func Mask(t testing.TB, size int) *mask.Mask {
	t.Helper()
	masksMu.Lock()
	defer masksMu.Unlock()
	if m, ok := masks[size]; ok {
		return m
	}
	m, err := mask.Build(Table(), size)
	if err != nil {
		t.Fatalf("mask.Build(%d): %v", size, err)
	}
	masks[size] = m
	return m
}

// Rig is a display opened over a simulated controller pair.
type Rig struct {
	Display *display.Display
	// Devices is indexed by controller.
	Devices [led.Controllers]*sim.Device
}

// NewRig opens a display on Table over fresh simulated controllers. The
// display is closed when the test ends.
func NewRig(t testing.TB, opts display.Options) *Rig {
	t.Helper()
	devs := sim.NewPair(Table())
	d, err := display.Open(Table(), []*controller.Link{
		controller.Attach("/dev/ttyACM0", devs[0], ReadTimeout),
		controller.Attach("/dev/ttyACM1", devs[1], ReadTimeout),
	}, opts)
	if err != nil {
		t.Fatalf("display.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return &Rig{Display: d, Devices: devs}
}

// Shown returns what the simulated devices currently display, indexed by
// LED id.
func (r *Rig) Shown() []led.Color {
	tbl := Table()
	out := make([]led.Color, led.Count)
	for c, dev := range r.Devices {
		snap := dev.Snapshot()
		for local, col := range snap {
			if id, ok := tbl.At(led.Controller(c), local); ok {
				out[id] = col
			}
		}
	}
	return out
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Serve runs one request against h and returns the recorder. Requests come
// from loopback so tsweb debug routes accept them.
func Serve(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// Describe formats a recorder for failure messages.
func Describe(w *httptest.ResponseRecorder) string {
	return fmt.Sprintf("%d %s", w.Code, w.Body.String())
}
