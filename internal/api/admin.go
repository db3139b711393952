package api

import (
	"bytes"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/display1593/internal/httputil"
	"github.com/banshee-data/display1593/internal/monitoring"
	"github.com/banshee-data/display1593/internal/preview"
	"github.com/banshee-data/display1593/internal/version"
)

var logf = monitoring.Prefixed("api: ")

// AttachAdminRoutes mounts controller status and LED state previews on the
// tsweb debug page.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("version", version.String())
	debug.KVFunc("controllers", func() any { return s.controllerStatus() })
	debug.KVFunc("smoothed brightness", func() any { return s.smoother.Value() })
	debug.HandleFunc("preview.png", "Current LED state as a PNG", s.handlePreviewPNG)
	debug.HandleFunc("preview.html", "Current LED state, interactive", s.handlePreviewHTML)
}

// handlePreviewPNG renders the cached state. ?size sets the edge length and
// ?boost=true lifts dim colours.
func (s *Server) handlePreviewPNG(w http.ResponseWriter, r *http.Request) {
	size, err := queryInt(r, "size", 600)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := preview.RenderPNG(&buf, s.display.Table(), s.state.Colors(), size, queryBool(r, "boost")); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) handlePreviewHTML(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := preview.RenderHTML(&buf, s.display.Table(), s.state.Colors(), "LED state", queryBool(r, "boost")); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
