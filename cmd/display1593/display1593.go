package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/display1593/internal/api"
	"github.com/banshee-data/display1593/internal/calibration"
	"github.com/banshee-data/display1593/internal/config"
	"github.com/banshee-data/display1593/internal/db"
	"github.com/banshee-data/display1593/internal/display"
	"github.com/banshee-data/display1593/internal/imaging"
	"github.com/banshee-data/display1593/internal/setup"
	"github.com/banshee-data/display1593/internal/timeutil"
	"github.com/banshee-data/display1593/internal/version"
)

var (
	configPath     = flag.String("config", "", "Path to a JSON or YAML display config")
	devMode        = flag.Bool("dev", false, "Run against simulated controllers")
	listen         = flag.String("listen", "", "Listen address (overrides config)")
	ports          = flag.String("ports", "", "Comma separated controller ports (overrides config)")
	dbPath         = flag.String("db", "", "Database path (overrides config)")
	restore        = flag.Bool("restore", false, "Show the latest saved snapshot on startup")
	verifyInterval = flag.Duration("verify-interval", 0, "Check controller liveness this often (0 disables)")
	sensorInterval = flag.Duration("sensor-interval", 0, "Log the light sensor this often (0 disables)")
	showVersion    = flag.Bool("version", false, "Print the version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags]\n       %s [flags] migrate up|down|status|force <version>\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.DisplayConfig, error) {
	cfg := &config.DisplayConfig{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *ports != "" {
		cfg.Ports = strings.Split(*ports, ",")
	}
	return cfg, cfg.Validate()
}

// every calls fn each interval until ctx is done.
func every(ctx context.Context, wg *sync.WaitGroup, clock timeutil.Clock, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := clock.NewTicker(interval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("display1593 %s", version.String())

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath()); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	assets, err := setup.LoadAssets(cfg)
	if err != nil {
		log.Fatalf("failed to load display assets: %v", err)
	}

	rig, err := setup.Open(cfg, assets.Table, setup.Options{Dev: *devMode, DB: database})
	if err != nil {
		log.Fatalf("failed to open display: %v", err)
	}
	defer rig.Close()
	ids := rig.Display.Identities()
	log.Printf("display ready: controller 0 is %s, controller 1 is %s", ids[0], ids[1])

	state := display.NewState()
	if err := rig.Display.Clear(); err != nil {
		log.Printf("failed to clear display: %v", err)
	}
	if *restore {
		snap, err := database.LatestSnapshot()
		switch {
		case err != nil:
			log.Printf("failed to load snapshot: %v", err)
		case snap == nil:
			log.Printf("no snapshot to restore")
		default:
			if err := rig.Display.SetAll(snap.Colors); err != nil {
				log.Printf("failed to restore snapshot %s: %v", snap.ID, err)
			} else {
				state.Replace(snap.Colors)
				log.Printf("restored snapshot %s (%s)", snap.ID, snap.Label)
			}
		}
	}

	server := api.NewServer(api.Config{
		Display: rig.Display,
		State:   state,
		Pipeline: &imaging.Pipeline{
			Mask:    assets.Mask,
			Tables:  assets.Tables,
			Display: rig.Display,
		},
		DB:         database,
		Smoother:   calibration.NewSmoother(calibration.DefaultAlpha),
		Thresholds: calibration.DefaultThresholds,
		Clock:      timeutil.RealClock{},
		ImagesDir:  cfg.GetImagesDir(),
	})

	var wg sync.WaitGroup
	clock := timeutil.RealClock{}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	every(ctx, &wg, clock, *verifyInterval, func() {
		if err := rig.Display.Verify(); err != nil {
			log.Printf("liveness check failed: %v", err)
		}
	})
	every(ctx, &wg, clock, *sensorInterval, func() {
		if _, err := server.ReadBrightness(); err != nil {
			log.Printf("sensor reading failed: %v", err)
		}
	})

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		server.AttachAdminRoutes(mux)
		rig.AttachAdminRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach db admin routes: %v", err)
		}

		httpServer := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
