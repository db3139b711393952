package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/display1593/internal/db"
	"github.com/banshee-data/display1593/internal/httputil"
	"github.com/banshee-data/display1593/internal/led"
)

// Client talks to a running display server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the server at base, e.g.
// "http://localhost:8080". A nil hc uses http.DefaultClient.
func NewClient(base string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

func (c *Client) do(method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: invalid response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(method, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(method, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) Clear() error {
	return c.do(http.MethodPost, "/api/clear", "", nil, nil)
}

func (c *Client) SetLed(id led.ID, col led.Color) error {
	return c.doJSON(http.MethodPut, fmt.Sprintf("/api/leds/%d", id), map[string][3]int{"color": triple(col)}, nil)
}

func (c *Client) SetFrame(colors []led.Color) error {
	req := frameResponse{Colors: make([][3]int, len(colors))}
	for i, col := range colors {
		req.Colors[i] = triple(col)
	}
	return c.doJSON(http.MethodPut, "/api/frame", req, nil)
}

// ShowImage uploads an encoded image. level is passed through as the level
// query parameter; "" sends raw colours.
func (c *Client) ShowImage(img io.Reader, level string) error {
	path := "/api/image"
	if level != "" {
		path += "?level=" + url.QueryEscape(level)
	}
	return c.do(http.MethodPost, path, "application/octet-stream", img, nil)
}

func (c *Client) Brightness() (db.Reading, error) {
	var r db.Reading
	err := c.do(http.MethodGet, "/api/brightness", "", nil, &r)
	return r, err
}
