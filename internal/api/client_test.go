package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/display1593/internal/httputil"
	"github.com/banshee-data/display1593/internal/led"
)

func TestClientRequests(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	c := NewClient("http://display:8080/", m)

	require.NoError(t, c.SetLed(12, led.Color{R: 1, G: 2, B: 3}))
	require.NoError(t, c.ShowImage(strings.NewReader("png"), "auto"))
	require.NoError(t, c.Clear())

	require.Equal(t, 3, m.RequestCount())
	assert.Equal(t, http.MethodPut, m.Requests[0].Method)
	assert.Equal(t, "http://display:8080/api/leds/12", m.Requests[0].URL.String())
	assert.JSONEq(t, `{"color":[1,2,3]}`, string(m.Bodies[0]))
	assert.Equal(t, "/api/image", m.Requests[1].URL.Path)
	assert.Equal(t, "auto", m.Requests[1].URL.Query().Get("level"))
	assert.Equal(t, "png", string(m.Bodies[1]))
	assert.Equal(t, "/api/clear", m.Requests[2].URL.Path)
}

func TestClientErrors(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddResponse(http.StatusGatewayTimeout, `{"error":"timed out"}`).
		AddErrorResponse(errors.New("connection refused"))
	c := NewClient("http://display", m)

	_, err := c.Brightness()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	err = c.Clear()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClientAgainstServer(t *testing.T) {
	f := newFixture(t, false)
	f.rig.Devices[0].SetBrightness(42)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	require.NoError(t, c.SetFrame(led.Fill(led.Count, led.Color{R: 3})))
	assert.Equal(t, led.Color{R: 3}, f.rig.Shown()[1592])

	r, err := c.Brightness()
	require.NoError(t, err)
	assert.Equal(t, uint16(42), r.Raw)

	assert.Error(t, c.SetFrame(make([]led.Color, 2)))
}
