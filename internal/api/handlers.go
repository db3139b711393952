package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/display1593/internal/db"
	"github.com/banshee-data/display1593/internal/httputil"
	"github.com/banshee-data/display1593/internal/imaging"
	"github.com/banshee-data/display1593/internal/led"
)

// maxImageBytes bounds uploaded images.
const maxImageBytes = 32 << 20

type setLedRequest struct {
	Color []int `json:"color"`
}

type setManyRequest struct {
	IDs    []int   `json:"ids"`
	Colors [][]int `json:"colors"`
}

type frameRequest struct {
	Colors [][]int `json:"colors"`
}

type ledResponse struct {
	ID    led.ID `json:"id"`
	Color [3]int `json:"color"`
}

type frameResponse struct {
	Colors [][3]int `json:"colors"`
}

type sentResponse struct {
	Sent int `json:"sent"`
}

func triple(c led.Color) [3]int {
	return [3]int{int(c.R), int(c.G), int(c.B)}
}

func parseColors(vals [][]int) ([]led.Color, error) {
	colors := make([]led.Color, len(vals))
	for i, v := range vals {
		c, err := led.ColorFromInts(v...)
		if err != nil {
			return nil, fmt.Errorf("color %d: %w", i, err)
		}
		colors[i] = c
	}
	return colors, nil
}

func parseID(r *http.Request) (led.ID, error) {
	v := r.PathValue("id")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", led.ErrInvalidLed, v)
	}
	return led.ID(n), nil
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.display.Clear(); err != nil {
		writeError(w, err)
		return
	}
	s.state.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetLed(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.display.GetOne(id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, ledResponse{ID: id, Color: triple(c)})
}

// handleSetLed sets one LED. ?level=N passes the colour through that
// calibration level first.
func (s *Server) handleSetLed(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setLedRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	c, err := led.ColorFromInts(req.Color...)
	if err != nil {
		writeError(w, err)
		return
	}
	if v := r.URL.Query().Get("level"); v != "" {
		if s.pipeline == nil || s.pipeline.Tables == nil {
			writeError(w, fmt.Errorf("calibration tables: %w", errUnavailable))
			return
		}
		level, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid level %q", v))
			return
		}
		if c, err = s.pipeline.Tables.Correct(c, level); err != nil {
			writeError(w, err)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.display.SetOne(id, c); err != nil {
		writeError(w, err)
		return
	}
	s.state.Commit([]led.ID{id}, []led.Color{c})
	httputil.WriteJSONOK(w, ledResponse{ID: id, Color: triple(c)})
}

func (s *Server) handleSetMany(w http.ResponseWriter, r *http.Request) {
	var req setManyRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	colors, err := parseColors(req.Colors)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]led.ID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = led.ID(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.display.SetMany(ids, colors); err != nil {
		writeError(w, err)
		return
	}
	s.state.Commit(ids, colors)
	httputil.WriteJSONOK(w, sentResponse{Sent: len(ids)})
}

// handleGetFrame returns the cached state, not a readback from hardware.
func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	colors := s.state.Colors()
	resp := frameResponse{Colors: make([][3]int, len(colors))}
	for i, c := range colors {
		resp.Colors[i] = triple(c)
	}
	httputil.WriteJSONOK(w, resp)
}

// handleSetFrame sends a full frame. With ?diff=true only LEDs that differ
// from the cached state are sent.
func (s *Server) handleSetFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	colors, err := parseColors(req.Colors)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if queryBool(r, "diff") {
		n, err := s.display.Update(s.state, colors)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, sentResponse{Sent: n})
		return
	}
	if err := s.display.SetAll(colors); err != nil {
		writeError(w, err)
		return
	}
	s.state.Replace(colors)
	httputil.WriteJSONOK(w, sentResponse{Sent: len(colors)})
}

// handleImage shows an uploaded image. level selects a calibration level,
// "auto" derives it from a fresh sensor reading, and omitting it sends raw
// colours. dim applies square-law dimming to the raw colours instead.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, fmt.Errorf("image pipeline: %w", errUnavailable))
		return
	}
	buf, err := imaging.Decode(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.showImage(w, r, buf)
}

// showImage shows buf at the ?level and ?dim the request asks for.
func (s *Server) showImage(w http.ResponseWriter, r *http.Request, buf *imaging.Buffer) {
	var err error
	level := imaging.Raw
	switch v := r.URL.Query().Get("level"); v {
	case "":
	case "auto":
		if s.pipeline.Tables == nil {
			writeError(w, fmt.Errorf("calibration tables: %w", errUnavailable))
			return
		}
		reading, err := s.ReadBrightness()
		if err != nil {
			writeError(w, err)
			return
		}
		level = min(reading.Level, s.pipeline.Tables.NumLevels()-1)
	default:
		if level, err = strconv.Atoi(v); err != nil || level < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid level %q", v))
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v := r.URL.Query().Get("dim"); v != "" {
		dimness, err := strconv.ParseFloat(v, 64)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid dim %q", v))
			return
		}
		colors, err := s.pipeline.Colors(buf, imaging.Raw)
		if err == nil {
			colors, err = imaging.Dim(colors, dimness)
		}
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.display.SetAll(colors); err != nil {
			writeError(w, err)
			return
		}
		s.state.Replace(colors)
		httputil.WriteJSONOK(w, map[string]any{"level": level, "dim": dimness})
		return
	}

	if _, err := s.pipeline.Show(buf, level); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"level": level})
}

// ReadBrightness takes one sensor reading, folds it into the running
// average and logs it when a database is configured.
func (s *Server) ReadBrightness() (db.Reading, error) {
	raw, err := s.display.GetBrightness()
	if err != nil {
		return db.Reading{}, err
	}
	smoothed := s.smoother.Add(float64(raw))
	reading := db.Reading{
		TakenAt:  s.clock.Now(),
		Identity: s.display.SensorIdentity(),
		Raw:      raw,
		Smoothed: smoothed,
		Level:    s.thresholds.LevelFor(smoothed),
	}
	if s.db != nil {
		if err := s.db.RecordReading(reading); err != nil {
			logf("failed to log sensor reading: %v", err)
		}
	}
	return reading, nil
}

func (s *Server) handleBrightness(w http.ResponseWriter, r *http.Request) {
	reading, err := s.ReadBrightness()
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, reading)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, fmt.Errorf("reading log: %w", errUnavailable))
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	readings, err := s.db.Readings(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, readings)
}

type controllerStatus struct {
	Controller int    `json:"controller"`
	Identity   string `json:"identity"`
	Path       string `json:"path"`
	State      string `json:"state"`
}

func (s *Server) controllerStatus() []controllerStatus {
	out := make([]controllerStatus, led.Controllers)
	for c := range out {
		l := s.display.Link(led.Controller(c))
		out[c] = controllerStatus{Controller: c, Identity: l.Identity(), Path: l.Path(), State: l.State().String()}
	}
	return out
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := s.display.Verify(); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.controllerStatus())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"controllers":         s.controllerStatus(),
		"sensor_identity":     s.display.SensorIdentity(),
		"smoothed_brightness": s.smoother.Value(),
	})
}
