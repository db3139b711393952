package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/display1593/internal/httputil"
	"github.com/banshee-data/display1593/internal/imaging"
	"github.com/banshee-data/display1593/internal/security"
)

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif"}

func isImageName(name string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(name)))
}

// imagePath resolves a stored image name, writing the error response itself
// when it returns false.
func (s *Server) imagePath(w http.ResponseWriter, name string) (string, bool) {
	if s.imagesDir == "" {
		writeError(w, fmt.Errorf("images directory: %w", errUnavailable))
		return "", false
	}
	if !isImageName(name) {
		httputil.BadRequest(w, fmt.Sprintf("%q is not a png, jpeg or gif name", name))
		return "", false
	}
	path, err := security.ResolveWithin(s.imagesDir, name)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return "", false
	}
	return path, true
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	if s.imagesDir == "" {
		writeError(w, fmt.Errorf("images directory: %w", errUnavailable))
		return
	}
	entries, err := os.ReadDir(s.imagesDir)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && isImageName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	httputil.WriteJSONOK(w, map[string]any{"images": names})
}

// handleStoreImage saves the body under a sanitized form of {name} once it
// decodes as an image.
func (s *Server) handleStoreImage(w http.ResponseWriter, r *http.Request) {
	name := security.SanitizeFilename(r.PathValue("name"))
	path, ok := s.imagePath(w, name)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	logf("stored image %s (%d bytes)", name, len(data))
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"name": name})
}

func (s *Server) handleShowStoredImage(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, fmt.Errorf("image pipeline: %w", errUnavailable))
		return
	}
	path, ok := s.imagePath(w, r.PathValue("name"))
	if !ok {
		return
	}
	buf, err := imaging.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		httputil.NotFound(w, fmt.Sprintf("no image %q", r.PathValue("name")))
		return
	case err != nil:
		httputil.BadRequest(w, err.Error())
		return
	}
	s.showImage(w, r, buf)
}
