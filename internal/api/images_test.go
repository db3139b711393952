package api

import (
	"bytes"
	"image/color"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/testutil"
)

func TestStoredImages(t *testing.T) {
	f := newFixture(t, true)
	blue := pngOf(t, maskSize, color.NRGBA{B: 255, A: 255})

	code, body := f.do(http.MethodGet, "/api/images", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, `{"images":[]}`, body)

	w := testutil.Serve(f.mux, http.MethodPut, "/api/images/deep%20blue.png", bytes.NewReader(blue))
	require.Equal(t, http.StatusCreated, w.Code, testutil.Describe(w))
	assert.JSONEq(t, `{"name":"deep_blue.png"}`, w.Body.String())
	_, err := os.Stat(filepath.Join(f.server.imagesDir, "deep_blue.png"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.server.imagesDir, "notes.txt"), []byte("x"), 0o644))
	code, body = f.do(http.MethodGet, "/api/images", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, `{"images":["deep_blue.png"]}`, body)

	code, body = f.do(http.MethodPost, "/api/images/deep_blue.png/show", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, led.Fill(led.Count, led.Color{B: 255}), f.rig.Shown())

	code, _ = f.do(http.MethodPost, "/api/images/missing.png/show", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(http.MethodPost, "/api/images/notes.txt/show", "")
	assert.Equal(t, http.StatusBadRequest, code)

	w = testutil.Serve(f.mux, http.MethodPut, "/api/images/bad.png", bytes.NewReader([]byte("not an image")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, err = os.Stat(filepath.Join(f.server.imagesDir, "bad.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoredImagesWithoutDir(t *testing.T) {
	f := newFixture(t, false)
	code, _ := f.do(http.MethodGet, "/api/images", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	w := testutil.Serve(f.mux, http.MethodPut, "/api/images/a.png", bytes.NewReader(pngOf(t, 8, color.White)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
