// Package api serves the driver-facing HTTP interface: single and batch LED
// updates, full frames, images, the light sensor and saved snapshots.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/display1593/internal/calibration"
	"github.com/banshee-data/display1593/internal/db"
	"github.com/banshee-data/display1593/internal/display"
	"github.com/banshee-data/display1593/internal/httputil"
	"github.com/banshee-data/display1593/internal/imaging"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/timeutil"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// errUnavailable marks features the server was started without.
var errUnavailable = errors.New("not configured")

// Config wires a Server. Pipeline and DB are optional; the routes that need
// them answer 503 when they are nil.
type Config struct {
	Display    *display.Display
	State      *display.State
	Pipeline   *imaging.Pipeline
	DB         *db.DB
	Smoother   *calibration.Smoother
	Thresholds calibration.Thresholds
	// Clock stamps sensor readings. Nil uses the wall clock.
	Clock timeutil.Clock
	// ImagesDir holds images that can be shown by name. Empty disables the
	// /api/images routes.
	ImagesDir string
}

type Server struct {
	display    *display.Display
	state      *display.State
	pipeline   *imaging.Pipeline
	db         *db.DB
	smoother   *calibration.Smoother
	thresholds calibration.Thresholds
	clock      timeutil.Clock
	imagesDir  string

	// mu keeps the state cache in step with what was last sent.
	mu sync.Mutex
}

// NewServer fills in defaults for the optional parts of cfg. A pipeline
// without a State shares the server's.
func NewServer(cfg Config) *Server {
	s := &Server{
		display:    cfg.Display,
		state:      cfg.State,
		pipeline:   cfg.Pipeline,
		db:         cfg.DB,
		smoother:   cfg.Smoother,
		thresholds: cfg.Thresholds,
		clock:      cfg.Clock,
		imagesDir:  cfg.ImagesDir,
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.state == nil {
		s.state = display.NewState()
	}
	if s.smoother == nil {
		s.smoother = calibration.NewSmoother(calibration.DefaultAlpha)
	}
	if s.thresholds == nil {
		s.thresholds = calibration.DefaultThresholds
	}
	if s.pipeline != nil && s.pipeline.State == nil {
		s.pipeline.State = s.state
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/leds/{id}", s.handleGetLed)
	mux.HandleFunc("PUT /api/leds/{id}", s.handleSetLed)
	mux.HandleFunc("POST /api/leds", s.handleSetMany)
	mux.HandleFunc("GET /api/frame", s.handleGetFrame)
	mux.HandleFunc("PUT /api/frame", s.handleSetFrame)
	mux.HandleFunc("POST /api/image", s.handleImage)
	mux.HandleFunc("GET /api/images", s.handleListImages)
	mux.HandleFunc("PUT /api/images/{name}", s.handleStoreImage)
	mux.HandleFunc("POST /api/images/{name}/show", s.handleShowStoredImage)
	mux.HandleFunc("GET /api/brightness", s.handleBrightness)
	mux.HandleFunc("GET /api/readings", s.handleReadings)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/snapshot", s.handleListSnapshots)
	mux.HandleFunc("POST /api/snapshot", s.handleSaveSnapshot)
	mux.HandleFunc("POST /api/snapshot/{id}/restore", s.handleRestoreSnapshot)
	return mux
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case led.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, led.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, led.ErrNoSensor):
		return http.StatusNotFound
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}
	httputil.WriteJSONError(w, status, err.Error())
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
