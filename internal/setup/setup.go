// Package setup builds a running display from a DisplayConfig: it loads the
// geometry, mask and calibration assets, finds and opens the controller
// ports and resolves the controller pair.
package setup

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/banshee-data/display1593/internal/calibration"
	"github.com/banshee-data/display1593/internal/config"
	"github.com/banshee-data/display1593/internal/controller"
	"github.com/banshee-data/display1593/internal/db"
	"github.com/banshee-data/display1593/internal/display"
	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/mask"
	"github.com/banshee-data/display1593/internal/serialmux"
	"github.com/banshee-data/display1593/internal/sim"
)

// SyntheticSplit is the controller 0 LED count used when no geometry file is
// configured.
const SyntheticSplit = 800

// DefaultGamma shapes the calibration tables generated when no calibration
// file is configured.
const DefaultGamma = 2.2

// Assets are the read-only tables the image pipeline needs.
type Assets struct {
	Table  *geometry.Table
	Mask   *mask.Mask
	Tables *calibration.Tables
}

// LoadAssets reads the configured files. Missing paths fall back to a
// synthetic geometry, a mask built from the geometry and gamma tables with
// one level per sensor threshold.
func LoadAssets(cfg *config.DisplayConfig) (*Assets, error) {
	var a Assets
	var err error

	if p := cfg.GetGeometryPath(); p != "" {
		if a.Table, err = geometry.Load(p); err != nil {
			return nil, err
		}
	} else {
		log.Printf("no geometry configured, using synthetic layout")
		a.Table = geometry.Synthetic(SyntheticSplit)
	}

	if p := cfg.GetMaskPath(); p != "" {
		if a.Mask, err = mask.Load(p); err != nil {
			return nil, err
		}
		if len(a.Mask.Pixels) != led.Count {
			return nil, fmt.Errorf("mask %s covers %d leds, want %d", p, len(a.Mask.Pixels), led.Count)
		}
	} else {
		log.Printf("no mask configured, building %dx%d mask from geometry", mask.DefaultSize, mask.DefaultSize)
		if a.Mask, err = mask.Build(a.Table, mask.DefaultSize); err != nil {
			return nil, err
		}
	}

	if p := cfg.GetCalibrationPath(); p != "" {
		if a.Tables, err = calibration.Load(p); err != nil {
			return nil, err
		}
	} else {
		a.Tables = calibration.Gamma(len(calibration.DefaultThresholds), DefaultGamma, 255)
	}
	return &a, nil
}

// Options controls how ports are found.
type Options struct {
	// Dev replaces the serial ports with a simulated controller pair.
	Dev bool
	// DB, when set, supplies remembered ports and records the resolved pair.
	DB *db.DB
	// Open opens real ports. Nil uses serialmux.Open.
	Open serialmux.Opener
}

// Rig is an open display with the taps on its byte streams.
type Rig struct {
	Display *display.Display
	Taps    []*serialmux.Tap
	// Devices holds the simulated controllers in dev mode, by link order.
	Devices [led.Controllers]*sim.Device
}

// Close closes the display and its ports.
func (r *Rig) Close() error { return r.Display.Close() }

// AttachAdminRoutes mounts the traffic taps on the debug mux.
func (r *Rig) AttachAdminRoutes(mux *http.ServeMux) {
	for _, t := range r.Taps {
		t.AttachAdminRoutes(mux)
	}
}

type portSpec struct {
	path    string
	options serialmux.PortOptions
}

// findPorts returns the configured ports, else the enabled ports remembered
// in the database, else whatever matches serialmux.DiscoverPatterns.
func findPorts(cfg *config.DisplayConfig, database *db.DB) ([]portSpec, error) {
	var specs []portSpec
	for _, p := range cfg.Ports {
		specs = append(specs, portSpec{path: p, options: cfg.Serial})
	}
	if len(specs) == 0 && database != nil {
		stored, err := database.ControllerPorts()
		if err != nil {
			return nil, err
		}
		for _, p := range stored {
			if p.Enabled {
				specs = append(specs, portSpec{path: p.PortPath, options: p.Options()})
			}
		}
	}
	if len(specs) == 0 {
		found, err := serialmux.Discover()
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			specs = append(specs, portSpec{path: p, options: cfg.Serial})
		}
	}
	if len(specs) != led.Controllers {
		paths := make([]string, len(specs))
		for i, s := range specs {
			paths[i] = s.path
		}
		return nil, fmt.Errorf("found %d controller ports %v, need %d", len(specs), paths, led.Controllers)
	}
	return specs, nil
}

// Open connects to both controllers and resolves the pair on table.
func Open(cfg *config.DisplayConfig, table *geometry.Table, opts Options) (*Rig, error) {
	r := &Rig{}
	dopts := display.Options{
		Identities:     cfg.GetIdentities(),
		SensorIdentity: cfg.GetSensorIdentity(),
		Concurrent:     cfg.GetConcurrentWrites(),
	}
	timeout := cfg.GetReadTimeout()

	if opts.Dev {
		devs := sim.NewPair(table)
		var links []*controller.Link
		for i, dev := range devs {
			tap := serialmux.NewTap(fmt.Sprintf("sim%d", i), dev)
			r.Taps = append(r.Taps, tap)
			r.Devices[i] = dev
			links = append(links, controller.Attach(tap.Name(), tap, timeout))
		}
		d, err := display.Open(table, links, dopts)
		if err != nil {
			return nil, err
		}
		r.Display = d
		return r, nil
	}

	specs, err := findPorts(cfg, opts.DB)
	if err != nil {
		return nil, err
	}
	open := opts.Open
	if open == nil {
		open = serialmux.Open
	}
	tapped := func(path string, o serialmux.PortOptions) (serialmux.TimeoutSerialPorter, error) {
		port, err := open(path, o)
		if err != nil {
			return nil, err
		}
		tap := serialmux.NewTap(filepath.Base(path), port)
		r.Taps = append(r.Taps, tap)
		return tap, nil
	}
	var links []*controller.Link
	for _, s := range specs {
		links = append(links, controller.New(controller.Config{
			Path: s.path, Options: s.options, ReadTimeout: timeout, Open: tapped,
		}))
	}
	d, err := display.Open(table, links, dopts)
	if err != nil {
		return nil, err
	}
	r.Display = d

	if opts.DB != nil {
		if err := remember(opts.DB, d, specs); err != nil {
			log.Printf("failed to remember controller ports: %v", err)
		}
	}
	return r, nil
}

// remember stores the resolved identity of each port so the next start can
// find them without configuration.
func remember(database *db.DB, d *display.Display, specs []portSpec) error {
	var errs []error
	for c := range led.Controllers {
		l := d.Link(led.Controller(c))
		for _, s := range specs {
			if s.path != l.Path() {
				continue
			}
			o := s.options
			errs = append(errs, database.SaveControllerPort(&db.ControllerPort{
				Identity: l.Identity(), PortPath: s.path, Enabled: true,
				BaudRate: o.BaudRate, DataBits: o.DataBits, StopBits: o.StopBits, Parity: o.Parity,
			}))
		}
	}
	return errors.Join(errs...)
}
