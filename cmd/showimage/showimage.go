// Command showimage shows one image on the display and, by default, keeps
// re-showing it at the calibration level that matches the ambient light.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/banshee-data/display1593/internal/api"
	"github.com/banshee-data/display1593/internal/calibration"
	"github.com/banshee-data/display1593/internal/config"
	"github.com/banshee-data/display1593/internal/imaging"
	"github.com/banshee-data/display1593/internal/setup"
	"github.com/banshee-data/display1593/internal/timeutil"
	"github.com/banshee-data/display1593/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML display config")
	devMode    = flag.Bool("dev", false, "Run against simulated controllers")
	remote     = flag.String("remote", "", "Send the image to a running display server at this URL instead of opening the ports")
	levelFlag  = flag.String("level", "auto", `Calibration level: "auto" follows the light sensor, "raw" skips calibration, or a level number`)
	dim        = flag.Float64("dim", 0, "Square-law dimming factor for raw colours (0 disables, implies -level=raw)")
	once       = flag.Bool("once", false, "Show the image once and exit")
	interval   = flag.Duration("interval", time.Second, "Sensor polling interval in auto mode")
	samples    = flag.Int("samples", 5, "Sensor readings averaged to seed the auto level")
	showVer    = flag.Bool("version", false, "Print the version and exit")

	clock timeutil.Clock = timeutil.RealClock{}
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] image\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if *remote != "" {
		err = runRemote(ctx, path)
	} else {
		err = runLocal(ctx, path)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func runLocal(ctx context.Context, path string) error {
	cfg := &config.DisplayConfig{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	buf, err := imaging.Open(path)
	if err != nil {
		return err
	}
	assets, err := setup.LoadAssets(cfg)
	if err != nil {
		return err
	}
	rig, err := setup.Open(cfg, assets.Table, setup.Options{Dev: *devMode})
	if err != nil {
		return err
	}
	defer rig.Close()
	if err := rig.Display.Clear(); err != nil {
		return err
	}

	pipeline := &imaging.Pipeline{Mask: assets.Mask, Tables: assets.Tables, Display: rig.Display}
	show := func(level int) error {
		if *dim > 0 {
			colors, err := pipeline.Colors(buf, imaging.Raw)
			if err != nil {
				return err
			}
			if colors, err = imaging.Dim(colors, *dim); err != nil {
				return err
			}
			return rig.Display.SetAll(colors)
		}
		_, err := pipeline.Show(buf, level)
		return err
	}
	return run(ctx, rig.Display, show, assets.Tables.NumLevels())
}

// remoteSensor reads the light sensor through a display server.
type remoteSensor struct{ c *api.Client }

func (s remoteSensor) GetBrightness() (uint16, error) {
	r, err := s.c.Brightness()
	return r.Raw, err
}

func runRemote(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c := api.NewClient(*remote, nil)
	show := func(level int) error {
		l := ""
		if level >= 0 {
			l = strconv.Itoa(level)
		}
		return c.ShowImage(bytes.NewReader(data), l)
	}
	return run(ctx, remoteSensor{c}, show, len(calibration.DefaultThresholds))
}

// run shows the image at a fixed level, or follows the sensor in auto mode.
func run(ctx context.Context, s sensor, show func(level int) error, levels int) error {
	switch {
	case *dim > 0 || *levelFlag == "raw":
		return showAndWait(ctx, func() error { return show(imaging.Raw) })
	case *levelFlag != "auto":
		level, err := strconv.Atoi(*levelFlag)
		if err != nil {
			return fmt.Errorf("invalid level %q", *levelFlag)
		}
		return showAndWait(ctx, func() error { return show(level) })
	}

	f := &follower{
		sensor:     s,
		show:       show,
		smoother:   calibration.NewSmoother(calibration.DefaultAlpha),
		thresholds: calibration.DefaultThresholds,
		maxLevel:   levels - 1,
	}
	if err := f.seed(*samples); err != nil {
		return err
	}
	if err := f.step(); err != nil || *once {
		return err
	}
	ticker := clock.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			if err := f.step(); err != nil {
				log.Printf("failed to update image: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// showAndWait shows once and, unless -once is set, keeps the process (and
// so the ports) open until interrupted.
func showAndWait(ctx context.Context, show func() error) error {
	if err := show(); err != nil || *once {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}
